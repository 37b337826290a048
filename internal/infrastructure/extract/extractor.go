package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"contentpipeline/internal/ports"
)

// Selector chain for the article body; tried in order, first substantial
// match wins, full page body is the last resort.
var contentSelectors = []string{
	"article",
	"div.article-content",
	"div.post-content",
	"div.entry-content",
	"main",
	"div.content",
}

// minSelectorLength filters out selector matches that are navigation stubs
// rather than the actual article body.
const minSelectorLength = 100

// Extractor fetches a source page and produces a bounded plain-text
// excerpt of its main content.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxLength int
}

var _ ports.ContentExtractor = (*Extractor)(nil)

// New wires an HTTP client; maxLength bounds downstream token usage.
func New(client *http.Client, userAgent string, maxLength int) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Extractor{client: client, userAgent: userAgent, maxLength: maxLength}
}

// Extract downloads the page and returns its readable text. Any network or
// parse failure is returned as an error; callers skip the entry.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	for _, selector := range contentSelectors {
		text := collapse(doc.Find(selector).First().Text())
		if len(text) >= minSelectorLength {
			return e.truncate(text), nil
		}
	}

	body := collapse(doc.Find("body").Text())
	if body == "" {
		return "", fmt.Errorf("no textual content at %s", pageURL)
	}
	return e.truncate(body), nil
}

func (e *Extractor) truncate(text string) string {
	if e.maxLength <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= e.maxLength {
		return text
	}
	return string(runes[:e.maxLength])
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
