package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleText = "Este é o corpo principal do artigo com texto suficiente para passar o filtro de tamanho mínimo aplicado aos seletores de conteúdo da página."

func serve(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExtractUsesArticleSelector(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<nav>menu menu menu</nav>
		<article><script>var tracker = 1;</script><p>` + articleText + `</p></article>
	</body></html>`
	server := serve(t, html)

	extractor := New(server.Client(), "test-agent", 5000)
	got, err := extractor.Extract(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, articleText, got)
	assert.NotContains(t, got, "tracker")
}

func TestExtractFallsBackToBody(t *testing.T) {
	t.Parallel()

	server := serve(t, `<html><body><p>corpo curto</p></body></html>`)

	extractor := New(server.Client(), "test-agent", 5000)
	got, err := extractor.Extract(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "corpo curto", got)
}

func TestExtractTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("palavra ", 200)
	server := serve(t, `<html><body><article><p>`+long+`</p></article></body></html>`)

	extractor := New(server.Client(), "test-agent", 120)
	got, err := extractor.Extract(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, []rune(got), 120)
}

func TestExtractNonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	extractor := New(server.Client(), "test-agent", 5000)
	_, err := extractor.Extract(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestExtractEmptyPage(t *testing.T) {
	t.Parallel()

	server := serve(t, `<html><body><script>only()</script></body></html>`)

	extractor := New(server.Client(), "test-agent", 5000)
	_, err := extractor.Extract(context.Background(), server.URL)
	assert.Error(t, err)
}
