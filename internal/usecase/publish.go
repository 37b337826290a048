package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

const defaultCategory = "Notícias"

var feedCategories = map[domain.FeedType]string{
	domain.FeedMovies:  "Filmes",
	domain.FeedTVShows: "Séries",
}

// PublisherDeps wires the CMS adapter and persistence into the publishing
// stage.
type PublisherDeps struct {
	Repository ports.ArticleRepository
	CMS        ports.CMS
	Categories map[string]int
	Logger     *slog.Logger
}

// Publisher pushes processed articles (and their media) to the CMS.
type Publisher struct {
	repo       ports.ArticleRepository
	cms        ports.CMS
	categories map[string]int
	logger     *slog.Logger
}

// NewPublisher constructs the publishing stage.
func NewPublisher(deps PublisherDeps) *Publisher {
	return &Publisher{
		repo:       deps.Repository,
		cms:        deps.CMS,
		categories: deps.Categories,
		logger:     deps.Logger,
	}
}

// PublishProcessed claims up to max processed articles (moved to publishing
// before any remote call) and publishes each. Returns how many reached
// published.
func (p *Publisher) PublishProcessed(ctx context.Context, max int) int {
	articles, err := p.repo.ClaimBatch(ctx, domain.StatusProcessed, domain.StatusPublishing, max)
	if err != nil {
		p.logger.Error("claim processed articles failed", "error", err)
		return 0
	}

	count := 0
	for idx := range articles {
		if p.publishOne(ctx, &articles[idx]) {
			count++
		}
	}
	return count
}

func (p *Publisher) publishOne(ctx context.Context, article *domain.Article) bool {
	var mediaID int64
	if article.FeaturedImageURL != "" {
		id, err := p.cms.UploadMediaFromURL(ctx, article.FeaturedImageURL, article.FinalTitle)
		if err != nil {
			// Non-fatal: publish without a featured image.
			p.logger.Warn("featured image upload failed", "article", article.ID, "error", err)
		} else {
			mediaID = id
		}
	}

	draft := domain.PostDraft{
		Title:           article.FinalTitle,
		Content:         article.FinalContent,
		MetaDescription: article.MetaDescription,
		Categories:      p.resolveCategories(article),
		Tags:            p.resolveTags(ctx, article),
		FeaturedMedia:   mediaID,
	}

	post, err := p.cms.CreatePost(ctx, draft)
	if err != nil {
		if mErr := p.repo.MarkFailed(ctx, article.ID, err.Error()); mErr != nil {
			p.logger.Error("mark failed", "article", article.ID, "error", mErr)
		}
		p.appendLog(ctx, article.ID, false, fmt.Sprintf("publishing failed: %v", err))
		p.logger.Error("publish failed", "article", article.ID, "error", err)
		return false
	}

	article.WordPressID = post.ID
	article.WordPressURL = post.Link
	if err := p.repo.MarkPublished(ctx, article); err != nil {
		p.logger.Error("persist publish result failed", "article", article.ID, "error", err)
		return false
	}

	p.appendLog(ctx, article.ID, true, fmt.Sprintf("published: %s", post.Link))
	p.logger.Info("article published", "article", article.ID, "url", post.Link)
	return true
}

// resolveCategories always starts with the default category, adds the one
// derived from the feed type, then the AI-assigned category if it maps to a
// known one. Duplicates removed, insertion order preserved.
func (p *Publisher) resolveCategories(article *domain.Article) []int {
	var (
		resolved []int
		seen     = map[int]bool{}
	)
	add := func(name string) {
		id, ok := p.categories[name]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		resolved = append(resolved, id)
	}

	add(defaultCategory)
	add(feedCategories[article.FeedType])
	add(article.Category)
	return resolved
}

// resolveTags looks up or creates a remote tag per name; the primary
// subject is appended if not already tagged. A tag that cannot be resolved
// is skipped, not fatal.
func (p *Publisher) resolveTags(ctx context.Context, article *domain.Article) []int {
	names := append([]string(nil), article.Tags...)
	if article.PrimarySubject != "" && !containsString(names, article.PrimarySubject) {
		names = append(names, article.PrimarySubject)
	}

	var ids []int
	for _, name := range names {
		id, err := p.cms.EnsureTag(ctx, name)
		if err != nil {
			p.logger.Warn("tag resolution failed", "tag", name, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (p *Publisher) appendLog(ctx context.Context, articleID int64, success bool, message string) {
	entry := domain.ProcessingLog{
		ArticleID: articleID,
		Action:    domain.ActionWordPressPublish,
		Message:   message,
		Success:   success,
	}
	if err := p.repo.AppendLog(ctx, entry); err != nil {
		p.logger.Error("append audit log failed", "article", articleID, "error", err)
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
