package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

const rewritePrompt = `Você é um redator especialista em cultura pop. Reescreva o seguinte artigo em português com SEO, parágrafos bem separados e otimize para o Google.

REGRAS:
1. Traduza o artigo original para o português, mantendo todos os detalhes e a estrutura.
2. Reescreva com pelo menos 5-7 parágrafos separados (com quebras duplas).
3. Crie um título otimizado para SEO.
4. Crie uma meta description de até 150 caracteres.
5. Destaque a palavra-chave principal.
6. Categorize o artigo como 'Filmes', 'Séries' ou 'Notícias'.
7. Identifique o nome do filme ou série principal abordado no artigo.
8. Se houver embeds de vídeos do YouTube ou publicações do Twitter, incorpore diretamente no local apropriado do conteúdo com o código embed real.
9. Mantenha a coerência e a naturalidade do texto, como em uma publicação profissional de jornalismo de entretenimento.

ARTIGO ORIGINAL:
Título: %s
Conteúdo: %s

Responda APENAS em JSON:
{
  "titulo_final": "...",
  "conteudo_final": "...",
  "meta_description": "...",
  "focus_keyword": "...",
  "categoria": "...",
  "obra_principal": "...",
  "tags": ["...", "...", "..."]
}`

// GeminiClient implements ports.RewriteProvider against a Gemini
// generateContent-style endpoint with a single API key.
type GeminiClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.RewriteProvider = (*GeminiClient)(nil)

// NewGeminiClient builds a client for one credential.
func NewGeminiClient(endpoint, model, apiKey string) *GeminiClient {
	return &GeminiClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Generate sends the templated prompt and parses the structured rewrite.
func (c *GeminiClient) Generate(ctx context.Context, title, content string) (*domain.Rewrite, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("gemini client misconfigured")
	}

	prompt := fmt.Sprintf(rewritePrompt, title, content)
	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]string{
			"responseMimeType": "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gemini payload: %w", err)
	}

	requestURL := fmt.Sprintf("%s/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return parseRewrite(out.Candidates[0].Content.Parts[0].Text)
}

// parseRewrite decodes the model's JSON answer and enforces that all seven
// required fields are present; partial output is never accepted.
func parseRewrite(raw string) (*domain.Rewrite, error) {
	raw = stripCodeFence(raw)

	var payload struct {
		TituloFinal     string   `json:"titulo_final"`
		ConteudoFinal   string   `json:"conteudo_final"`
		MetaDescription string   `json:"meta_description"`
		FocusKeyword    string   `json:"focus_keyword"`
		Categoria       string   `json:"categoria"`
		ObraPrincipal   string   `json:"obra_principal"`
		Tags            []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("malformed rewrite response: %w", err)
	}

	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("titulo_final", payload.TituloFinal)
	check("conteudo_final", payload.ConteudoFinal)
	check("meta_description", payload.MetaDescription)
	check("focus_keyword", payload.FocusKeyword)
	check("categoria", payload.Categoria)
	check("obra_principal", payload.ObraPrincipal)
	if len(payload.Tags) == 0 {
		missing = append(missing, "tags")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("rewrite response missing fields: %s", strings.Join(missing, ", "))
	}

	return &domain.Rewrite{
		Title:           payload.TituloFinal,
		Content:         payload.ConteudoFinal,
		MetaDescription: payload.MetaDescription,
		FocusKeyword:    payload.FocusKeyword,
		Category:        payload.Categoria,
		PrimarySubject:  payload.ObraPrincipal,
		Tags:            payload.Tags,
	}, nil
}

// stripCodeFence removes markdown fencing some models wrap JSON answers in.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
