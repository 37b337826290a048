package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeImageURL(t *testing.T) {
	t.Parallel()

	entryLink := "https://site.com/a"

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"absolute kept", "https://cdn.x/img.jpg", "https://cdn.x/img.jpg"},
		{"protocol relative", "//cdn.x/img.jpg", "https://cdn.x/img.jpg"},
		{"root relative", "/img.jpg", "https://site.com/img.jpg"},
		{"query ignored for extension", "https://cdn.x/img.png?w=300", "https://cdn.x/img.png?w=300"},
		{"unknown extension rejected", "https://cdn.x/img.svg", ""},
		{"no extension rejected", "https://cdn.x/image", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, normalizeImageURL(tt.raw, entryLink))
		})
	}
}

func TestFeaturedImagePrefersMediaMetadata(t *testing.T) {
	t.Parallel()

	item := &gofeed.Item{
		Link: "https://site.com/a",
		Extensions: ext.Extensions{
			"media": {
				"content": []ext.Extension{
					{Attrs: map[string]string{"url": "https://cdn.x/media.jpg", "type": "image/jpeg"}},
				},
			},
		},
		Enclosures:  []*gofeed.Enclosure{{URL: "https://cdn.x/enclosure.png", Type: "image/png"}},
		Description: `<p><img src="https://cdn.x/embedded.gif"/></p>`,
	}

	assert.Equal(t, "https://cdn.x/media.jpg", featuredImage(item))
}

func TestFeaturedImageFallsBackToEnclosure(t *testing.T) {
	t.Parallel()

	item := &gofeed.Item{
		Link:       "https://site.com/a",
		Enclosures: []*gofeed.Enclosure{{URL: "https://cdn.x/enclosure.png", Type: "image/png"}},
	}
	assert.Equal(t, "https://cdn.x/enclosure.png", featuredImage(item))
}

func TestFeaturedImageFallsBackToEmbeddedMarkup(t *testing.T) {
	t.Parallel()

	item := &gofeed.Item{
		Link:        "https://site.com/a",
		Description: `<div><img src="//cdn.x/inline.webp" alt=""/></div>`,
	}
	assert.Equal(t, "https://cdn.x/inline.webp", featuredImage(item))
}

func TestFeaturedImageNoneFound(t *testing.T) {
	t.Parallel()

	item := &gofeed.Item{Link: "https://site.com/a", Description: "<p>texto sem imagem</p>"}
	assert.Empty(t, featuredImage(item))
}

func TestLatestCapsEntriesAndMapsImages(t *testing.T) {
	t.Parallel()

	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Movies</title>
    <item>
      <title>First</title>
      <link>https://site.com/first</link>
      <enclosure url="https://cdn.x/first.jpg" type="image/jpeg" length="1"/>
    </item>
    <item>
      <title>Second</title>
      <link>https://site.com/second</link>
      <description><![CDATA[<p><img src="/second.png"/></p>]]></description>
    </item>
    <item>
      <title>Third</title>
      <link>https://site.com/third</link>
    </item>
    <item>
      <title>Fourth</title>
      <link>https://site.com/fourth</link>
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer server.Close()

	reader := NewReader("test-agent", nil)
	entries, err := reader.Latest(context.Background(), server.URL, 3)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "First", entries[0].Title)
	assert.Equal(t, "https://cdn.x/first.jpg", entries[0].ImageURL)
	assert.Equal(t, "https://site.com/second.png", entries[1].ImageURL)
	assert.Empty(t, entries[2].ImageURL)
}

func TestLatestMalformedFeed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not a feed at all"))
	}))
	defer server.Close()

	reader := NewReader("test-agent", nil)
	_, err := reader.Latest(context.Background(), server.URL, 3)
	assert.Error(t, err)
}
