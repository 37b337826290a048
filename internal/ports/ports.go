package ports

import (
	"context"
	"time"

	"contentpipeline/internal/domain"
)

// FeedReader pulls the most recent entries from a feed document.
type FeedReader interface {
	Latest(ctx context.Context, feedURL string, limit int) ([]domain.FeedEntry, error)
}

// ContentExtractor fetches a source page and returns a bounded plain-text
// excerpt. An empty result or an error both mean "skip this entry".
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// RewriteProvider invokes one AI credential and returns the validated
// structured rewrite, or an error for any network, format, or
// missing-field problem.
type RewriteProvider interface {
	Generate(ctx context.Context, title, content string) (*domain.Rewrite, error)
}

// ProviderResolver looks up a provider client by credential family and tier.
type ProviderResolver interface {
	Resolve(family string, tier domain.CredentialTier) (RewriteProvider, bool)
}

// ArticleRepository persists articles and their audit trail. ClaimBatch is
// the concurrency-safety primitive: it atomically moves up to limit rows
// from one status to the next in-progress status and returns only the rows
// it claimed, so overlapping cycles can never double-claim.
type ArticleRepository interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, article *domain.Article) error
	ClaimBatch(ctx context.Context, from, to domain.Status, limit int) ([]domain.Article, error)
	MarkProcessed(ctx context.Context, article *domain.Article) error
	MarkPublished(ctx context.Context, article *domain.Article) error
	MarkFailed(ctx context.Context, id int64, message string) error
	AppendLog(ctx context.Context, entry domain.ProcessingLog) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}

// CMS is the publishing target: posts, tags, and media endpoints.
type CMS interface {
	Ping(ctx context.Context) error
	UploadMediaFromURL(ctx context.Context, imageURL, title string) (int64, error)
	EnsureTag(ctx context.Context, name string) (int, error)
	CreatePost(ctx context.Context, draft domain.PostDraft) (*domain.PublishedPost, error)
}
