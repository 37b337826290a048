package usecase

import (
	"context"
	"sync"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

type claimCall struct {
	from  domain.Status
	to    domain.Status
	limit int
}

type fakeRepo struct {
	mu sync.Mutex

	existing  map[string]bool
	existsErr error

	inserted  []*domain.Article
	insertErr map[string]error
	nextID    int64

	claims   map[domain.Status][]domain.Article
	claimErr error
	claimed  []claimCall

	processed []domain.Article
	published []domain.Article
	failed    map[int64]string
	logs      []domain.ProcessingLog

	deleteCutoff time.Time
	deleted      int64
}

var _ ports.ArticleRepository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		existing:  map[string]bool{},
		insertErr: map[string]error{},
		claims:    map[domain.Status][]domain.Article{},
		failed:    map[int64]string{},
	}
}

func (f *fakeRepo) ExistsByURL(_ context.Context, url string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[url], nil
}

func (f *fakeRepo) Insert(_ context.Context, article *domain.Article) error {
	if err := f.insertErr[article.OriginalURL]; err != nil {
		return err
	}
	f.nextID++
	article.ID = f.nextID
	article.CreatedAt = time.Now()
	f.inserted = append(f.inserted, article)
	f.claims[article.Status] = append(f.claims[article.Status], *article)
	return nil
}

func (f *fakeRepo) ClaimBatch(_ context.Context, from, to domain.Status, limit int) ([]domain.Article, error) {
	f.mu.Lock()
	f.claimed = append(f.claimed, claimCall{from: from, to: to, limit: limit})
	f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	batch := f.claims[from]
	if limit < len(batch) {
		batch = batch[:limit]
	}
	out := make([]domain.Article, len(batch))
	copy(out, batch)
	f.claims[from] = f.claims[from][len(batch):]
	for i := range out {
		out[i].Status = to
	}
	return out, nil
}

func (f *fakeRepo) MarkProcessed(_ context.Context, article *domain.Article) error {
	article.Status = domain.StatusProcessed
	f.processed = append(f.processed, *article)
	f.claims[domain.StatusProcessed] = append(f.claims[domain.StatusProcessed], *article)
	return nil
}

func (f *fakeRepo) MarkPublished(_ context.Context, article *domain.Article) error {
	article.Status = domain.StatusPublished
	f.published = append(f.published, *article)
	return nil
}

func (f *fakeRepo) MarkFailed(_ context.Context, id int64, message string) error {
	f.failed[id] = message
	return nil
}

func (f *fakeRepo) AppendLog(_ context.Context, entry domain.ProcessingLog) error {
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.deleteCutoff = cutoff
	return f.deleted, nil
}

func (f *fakeRepo) CountByStatus(context.Context) (map[domain.Status]int64, error) {
	return map[domain.Status]int64{}, nil
}

func (f *fakeRepo) failedLogs() []domain.ProcessingLog {
	var out []domain.ProcessingLog
	for _, l := range f.logs {
		if !l.Success {
			out = append(out, l)
		}
	}
	return out
}

type fakeReader struct {
	entries map[string][]domain.FeedEntry
	errs    map[string]error
	calls   []string
}

func (f *fakeReader) Latest(_ context.Context, feedURL string, _ int) ([]domain.FeedEntry, error) {
	f.calls = append(f.calls, feedURL)
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}
	return f.entries[feedURL], nil
}

type fakeExtractor struct {
	content map[string]string
	errs    map[string]error
}

func (f *fakeExtractor) Extract(_ context.Context, pageURL string) (string, error) {
	if err := f.errs[pageURL]; err != nil {
		return "", err
	}
	return f.content[pageURL], nil
}

type fakeProvider struct {
	rewrite *domain.Rewrite
	err     error
	calls   int
}

func (f *fakeProvider) Generate(context.Context, string, string) (*domain.Rewrite, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rewrite, nil
}

type fakeResolver struct {
	providers map[string]map[domain.CredentialTier]*fakeProvider
}

func (f *fakeResolver) Resolve(family string, tier domain.CredentialTier) (ports.RewriteProvider, bool) {
	tiers, ok := f.providers[family]
	if !ok {
		return nil, false
	}
	p, ok := tiers[tier]
	if !ok {
		return nil, false
	}
	return p, true
}

type fakeCMS struct {
	pingErr error

	mediaID   int64
	uploadErr error
	uploaded  []string

	tags      map[string]int
	tagErrs   map[string]error
	nextTagID int

	post      *domain.PublishedPost
	createErr error
	drafts    []domain.PostDraft
}

var _ ports.CMS = (*fakeCMS)(nil)

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		tags:    map[string]int{},
		tagErrs: map[string]error{},
		post:    &domain.PublishedPost{ID: 101, Link: "https://blog.example/post-101"},
	}
}

func (f *fakeCMS) Ping(context.Context) error { return f.pingErr }

func (f *fakeCMS) UploadMediaFromURL(_ context.Context, imageURL, _ string) (int64, error) {
	f.uploaded = append(f.uploaded, imageURL)
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	return f.mediaID, nil
}

func (f *fakeCMS) EnsureTag(_ context.Context, name string) (int, error) {
	if err := f.tagErrs[name]; err != nil {
		return 0, err
	}
	if id, ok := f.tags[name]; ok {
		return id, nil
	}
	f.nextTagID++
	f.tags[name] = f.nextTagID
	return f.nextTagID, nil
}

func (f *fakeCMS) CreatePost(_ context.Context, draft domain.PostDraft) (*domain.PublishedPost, error) {
	f.drafts = append(f.drafts, draft)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.post, nil
}
