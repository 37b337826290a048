package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// Reader polls RSS/Atom feeds and maps their items into feed entries,
// including a best-effort featured-image URL.
type Reader struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ ports.FeedReader = (*Reader)(nil)

// NewReader builds a reader with a browser-like identity and bounded
// request timeout.
func NewReader(userAgent string, logger *slog.Logger) *Reader {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: 20 * time.Second}
	return &Reader{parser: parser, logger: logger}
}

// Latest parses the feed and returns at most limit of its most recent items.
func (r *Reader) Latest(ctx context.Context, feedURL string, limit int) ([]domain.FeedEntry, error) {
	parsed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := parsed.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	entries := make([]domain.FeedEntry, 0, len(items))
	for _, item := range items {
		entry := domain.FeedEntry{
			Title: strings.TrimSpace(item.Title),
			Link:  strings.TrimSpace(item.Link),
		}
		if item.PublishedParsed != nil {
			entry.PublishedAt = *item.PublishedParsed
		}
		entry.ImageURL = featuredImage(item)
		if entry.ImageURL != "" {
			r.debug("found featured image", "url", entry.ImageURL)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r *Reader) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// imageStrategy extracts a raw image URL candidate from a feed item.
type imageStrategy func(item *gofeed.Item) string

// Ordered: feed-native media metadata first, enclosures next, embedded
// markup last. The first non-empty candidate wins and is then normalized
// and validated.
var imageStrategies = []imageStrategy{
	mediaContentImage,
	enclosureImage,
	embeddedImage,
}

func featuredImage(item *gofeed.Item) string {
	for _, strategy := range imageStrategies {
		if raw := strategy(item); raw != "" {
			return normalizeImageURL(raw, item.Link)
		}
	}
	return ""
}

func mediaContentImage(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, content := range media["content"] {
		if strings.Contains(content.Attrs["type"], "image") {
			return content.Attrs["url"]
		}
	}
	return ""
}

func enclosureImage(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.Contains(enclosure.Type, "image") {
			return enclosure.URL
		}
	}
	return ""
}

func embeddedImage(item *gofeed.Item) string {
	for _, html := range []string{item.Description, item.Content} {
		if strings.TrimSpace(html) == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		if src, ok := doc.Find("img").First().Attr("src"); ok && src != "" {
			return src
		}
	}
	return ""
}

// normalizeImageURL resolves protocol-relative and root-relative candidates
// against the entry's own origin and rejects URLs whose path does not end
// in a known image extension.
func normalizeImageURL(raw, entryLink string) string {
	switch {
	case strings.HasPrefix(raw, "//"):
		raw = "https:" + raw
	case strings.HasPrefix(raw, "/"):
		origin, err := url.Parse(entryLink)
		if err != nil || origin.Scheme == "" || origin.Host == "" {
			return ""
		}
		raw = origin.Scheme + "://" + origin.Host + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}

	path := strings.ToLower(parsed.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return raw
		}
	}
	return ""
}
