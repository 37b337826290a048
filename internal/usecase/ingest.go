package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"contentpipeline/internal/config"
	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

// IngestorDeps wires the feed and extraction adapters into the ingestion
// stage.
type IngestorDeps struct {
	Feeds      []config.FeedConfig
	Reader     ports.FeedReader
	Extractor  ports.ContentExtractor
	Repository ports.ArticleRepository
	PerFeed    int
	Retention  time.Duration
	Logger     *slog.Logger
}

// Ingestor polls configured feeds, deduplicates against known articles, and
// enqueues new ones in pending status.
type Ingestor struct {
	feeds     []config.FeedConfig
	reader    ports.FeedReader
	extractor ports.ContentExtractor
	repo      ports.ArticleRepository
	perFeed   int
	retention time.Duration
	logger    *slog.Logger
}

// NewIngestor constructs the ingestion stage.
func NewIngestor(deps IngestorDeps) *Ingestor {
	perFeed := deps.PerFeed
	if perFeed <= 0 {
		perFeed = 3
	}
	return &Ingestor{
		feeds:     deps.Feeds,
		reader:    deps.Reader,
		extractor: deps.Extractor,
		repo:      deps.Repository,
		perFeed:   perFeed,
		retention: deps.Retention,
		logger:    deps.Logger,
	}
}

// FetchNew polls every configured feed and returns how many new articles
// were stored. A malformed feed is logged and skipped; it never aborts the
// other feeds.
func (i *Ingestor) FetchNew(ctx context.Context) int {
	count := 0
	for _, feed := range i.feeds {
		i.logger.Info("fetching feed", "type", feed.Type, "url", feed.URL)

		entries, err := i.reader.Latest(ctx, feed.URL, i.perFeed)
		if err != nil {
			i.logger.Error("feed fetch failed", "type", feed.Type, "error", err)
			continue
		}

		for _, entry := range entries {
			if i.ingestEntry(ctx, feed, entry) {
				count++
			}
		}
	}

	if count > 0 {
		i.logger.Info("saved new articles", "count", count)
	}
	return count
}

// ingestEntry stores one feed entry if it is new and has extractable
// content. Failures are contained to the entry.
func (i *Ingestor) ingestEntry(ctx context.Context, feed config.FeedConfig, entry domain.FeedEntry) bool {
	if entry.Link == "" {
		return false
	}

	exists, err := i.repo.ExistsByURL(ctx, entry.Link)
	if err != nil {
		i.logger.Error("dedup lookup failed", "url", entry.Link, "error", err)
		return false
	}
	if exists {
		return false
	}

	content, err := i.extractor.Extract(ctx, entry.Link)
	if err != nil || content == "" {
		i.logger.Debug("no extractable content, skipping", "url", entry.Link, "error", err)
		return false
	}

	article := &domain.Article{
		OriginalURL:      entry.Link,
		OriginalTitle:    entry.Title,
		OriginalContent:  content,
		FeaturedImageURL: entry.ImageURL,
		FeedType:         domain.FeedType(feed.Type),
		Status:           domain.StatusPending,
	}

	err = i.repo.Insert(ctx, article)
	if errors.Is(err, domain.ErrDuplicateURL) {
		// Lost the race against a concurrent ingest of the same URL;
		// not an error.
		i.logger.Debug("duplicate article, skipping", "url", entry.Link)
		return false
	}
	if err != nil {
		i.logger.Error("persist article failed", "url", entry.Link, "error", err)
		return false
	}

	i.logger.Info("new article found", "title", entry.Title, "id", article.ID)
	return true
}

// CleanupOld deletes terminal articles older than the retention window.
func (i *Ingestor) CleanupOld(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-i.retention)
	removed, err := i.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	i.logger.Info("cleaned up old articles", "count", removed)
	return removed, nil
}
