package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

const (
	pingTimeout = 10 * time.Second

	// Downloads smaller than this are treated as placeholder or broken
	// images and rejected.
	minImageBytes = 1024

	maxImageBytes = 10 << 20
)

// Client talks to the WordPress REST API: posts, tags, and media.
type Client struct {
	baseURL   string
	user      string
	password  string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

var _ ports.CMS = (*Client)(nil)

// NewClient normalizes the base URL to the versioned API root and wires
// Basic auth credentials.
func NewClient(baseURL, user, password, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   normalizeBaseURL(baseURL),
		user:      user,
		password:  password,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	if !strings.HasSuffix(trimmed, "wp-json/wp/v2") {
		trimmed += "/wp-json/wp/v2"
	}
	return trimmed + "/"
}

// Ping verifies the publishing target is reachable and the credentials are
// accepted.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"posts", nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach wordpress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wordpress returned %s", resp.Status)
	}
	return nil
}

// CreatePost submits the post and returns the remote identifiers. The API
// answers 201 with {id, link} on success.
func (c *Client) CreatePost(ctx context.Context, draft domain.PostDraft) (*domain.PublishedPost, error) {
	payload := map[string]any{
		"title":      draft.Title,
		"content":    draft.Content,
		"status":     "publish",
		"categories": draft.Categories,
		"meta": map[string]string{
			"description": draft.MetaDescription,
		},
	}
	if len(draft.Tags) > 0 {
		payload["tags"] = draft.Tags
	}
	if draft.FeaturedMedia > 0 {
		payload["featured_media"] = draft.FeaturedMedia
	}

	var created struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	}
	if err := c.postJSON(ctx, "posts", payload, &created); err != nil {
		return nil, err
	}
	return &domain.PublishedPost{ID: created.ID, Link: created.Link}, nil
}

// EnsureTag looks an existing tag up by name or creates it, returning the
// remote tag identifier.
func (c *Client) EnsureTag(ctx context.Context, name string) (int, error) {
	searchURL := c.baseURL + "tags?search=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("search tag %q: %w", name, err)
	}

	var found []struct {
		ID int `json:"id"`
	}
	if resp.StatusCode == http.StatusOK {
		err = json.NewDecoder(resp.Body).Decode(&found)
	}
	resp.Body.Close()
	if err == nil && len(found) > 0 {
		return found[0].ID, nil
	}

	var created struct {
		ID int `json:"id"`
	}
	if err := c.postJSON(ctx, "tags", map[string]string{"name": name}, &created); err != nil {
		return 0, fmt.Errorf("create tag %q: %w", name, err)
	}
	return created.ID, nil
}

// UploadMediaFromURL downloads the image, validates it is real image
// content of a plausible size, and uploads it to the media endpoint.
func (c *Client) UploadMediaFromURL(ctx context.Context, imageURL, title string) (int64, error) {
	data, contentType, err := c.downloadImage(ctx, imageURL)
	if err != nil {
		return 0, err
	}

	filename, mimeType := mediaFileFor(contentType)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return 0, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return 0, fmt.Errorf("write multipart: %w", err)
	}
	_ = writer.WriteField("title", "Featured image for "+truncateRunes(title, 50))
	_ = writer.WriteField("alt_text", truncateRunes(title, 100))
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"media", &buf)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("media upload returned %s", resp.Status)
	}

	var media struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return 0, fmt.Errorf("decode media response: %w", err)
	}
	c.debug("uploaded featured image", "media_id", media.ID)
	return media.ID, nil
}

func (c *Client) downloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download returned %s", resp.Status)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("url does not return an image: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image too large (over %d bytes)", maxImageBytes)
	}
	if len(data) < minImageBytes {
		return nil, "", fmt.Errorf("image too small (%d bytes)", len(data))
	}
	return data, contentType, nil
}

func mediaFileFor(contentType string) (filename, mimeType string) {
	switch {
	case strings.Contains(contentType, "png"):
		return "featured_image.png", "image/png"
	case strings.Contains(contentType, "webp"):
		return "featured_image.webp", "image/webp"
	default:
		return "featured_image.jpg", "image/jpeg"
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("wordpress %s returned %s: %s", path, resp.Status, strings.TrimSpace(string(detail)))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
