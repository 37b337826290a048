package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

const sentencesPerParagraph = 3

// reflowMinSentences: shorter bodies are left as the model produced them.
const reflowMinSentences = 5

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// EngineDeps wires the provider registry and persistence into the rewrite
// stage.
type EngineDeps struct {
	Repository ports.ArticleRepository
	Providers  ports.ProviderResolver
	Logger     *slog.Logger
}

// Engine rewrites pending articles through the AI provider with
// primary/backup credential fallback.
type Engine struct {
	repo      ports.ArticleRepository
	providers ports.ProviderResolver
	logger    *slog.Logger
}

// NewEngine constructs the rewrite stage.
func NewEngine(deps EngineDeps) *Engine {
	return &Engine{
		repo:      deps.Repository,
		providers: deps.Providers,
		logger:    deps.Logger,
	}
}

// RewritePending claims up to max pending articles (oldest first, moved to
// processing before any remote call) and rewrites each. Returns how many
// reached processed.
func (e *Engine) RewritePending(ctx context.Context, max int) int {
	articles, err := e.repo.ClaimBatch(ctx, domain.StatusPending, domain.StatusProcessing, max)
	if err != nil {
		e.logger.Error("claim pending articles failed", "error", err)
		return 0
	}

	count := 0
	for idx := range articles {
		if e.rewriteOne(ctx, &articles[idx]) {
			count++
		}
	}
	return count
}

func (e *Engine) rewriteOne(ctx context.Context, article *domain.Article) bool {
	family := article.FeedType.ProviderFamily()
	start := time.Now()

	rewrite, tier, err := e.generate(ctx, family, article)
	if err != nil {
		if mErr := e.repo.MarkFailed(ctx, article.ID, err.Error()); mErr != nil {
			e.logger.Error("mark failed", "article", article.ID, "error", mErr)
		}
		e.logger.Error("rewrite failed", "article", article.ID, "error", err)
		return false
	}

	applyRewrite(article, rewrite)
	article.AIUsed = credentialLabel(family, tier)
	article.ProcessingTime = int(time.Since(start).Seconds())

	if err := e.repo.MarkProcessed(ctx, article); err != nil {
		e.logger.Error("persist rewrite failed", "article", article.ID, "error", err)
		return false
	}

	e.appendLog(ctx, article.ID, article.AIUsed, true,
		fmt.Sprintf("rewritten in %ds", article.ProcessingTime))
	e.logger.Info("article rewritten", "article", article.ID, "ai", article.AIUsed,
		"seconds", article.ProcessingTime)
	return true
}

// generate tries the primary credential of the family, then the backup. Any
// failure of an attempt (network, timeout, malformed or incomplete
// response) is audited and triggers the next tier.
func (e *Engine) generate(ctx context.Context, family string, article *domain.Article) (*domain.Rewrite, domain.CredentialTier, error) {
	var lastErr error
	for _, tier := range []domain.CredentialTier{domain.TierPrimary, domain.TierBackup} {
		provider, ok := e.providers.Resolve(family, tier)
		if !ok {
			lastErr = fmt.Errorf("no %s credential configured for family %s", tier, family)
			continue
		}

		rewrite, err := provider.Generate(ctx, article.OriginalTitle, article.OriginalContent)
		if err == nil {
			return rewrite, tier, nil
		}

		lastErr = err
		e.appendLog(ctx, article.ID, credentialLabel(family, tier), false,
			fmt.Sprintf("attempt failed: %v", err))
		e.logger.Warn("provider attempt failed", "article", article.ID,
			"family", family, "tier", tier, "error", err)
	}
	return nil, "", fmt.Errorf("all %s credentials exhausted: %w", family, lastErr)
}

func (e *Engine) appendLog(ctx context.Context, articleID int64, aiUsed string, success bool, message string) {
	entry := domain.ProcessingLog{
		ArticleID: articleID,
		Action:    domain.ActionAIProcessing,
		Message:   message,
		AIUsed:    aiUsed,
		Success:   success,
	}
	if err := e.repo.AppendLog(ctx, entry); err != nil {
		e.logger.Error("append audit log failed", "article", articleID, "error", err)
	}
}

func credentialLabel(family string, tier domain.CredentialTier) string {
	return family + ":" + string(tier)
}

// applyRewrite copies the validated provider response onto the article,
// normalizing the title and re-flowing the body.
func applyRewrite(article *domain.Article, rewrite *domain.Rewrite) {
	article.FinalTitle = cleanTitle(rewrite.Title)
	article.FinalContent = reflowParagraphs(normalizeBold(rewrite.Content))
	article.MetaDescription = rewrite.MetaDescription
	article.FocusKeyword = rewrite.FocusKeyword
	article.Category = rewrite.Category
	article.PrimarySubject = rewrite.PrimarySubject
	article.Tags = rewrite.Tags
}

// normalizeBold converts author-supplied **bold** markers into strong tags.
func normalizeBold(text string) string {
	return boldPattern.ReplaceAllString(text, "<strong>$1</strong>")
}

// cleanTitle strips stray emphasis markers the model sometimes leaves in
// titles.
func cleanTitle(title string) string {
	return strings.TrimSpace(strings.ReplaceAll(title, "*", ""))
}

// reflowParagraphs regroups the text into paragraphs of three consecutive
// sentences joined by blank lines. Bodies with fewer than five sentences
// are returned unmodified.
func reflowParagraphs(text string) string {
	sentences := splitSentences(text)
	if len(sentences) < reflowMinSentences {
		return text
	}

	var paragraphs []string
	for start := 0; start < len(sentences); start += sentencesPerParagraph {
		end := start + sentencesPerParagraph
		if end > len(sentences) {
			end = len(sentences)
		}
		paragraphs = append(paragraphs, strings.Join(sentences[start:end], " "))
	}
	return strings.Join(paragraphs, "\n\n")
}

// splitSentences cuts the flattened text at terminal punctuation followed
// by whitespace, keeping the punctuation attached to its sentence.
func splitSentences(text string) []string {
	flattened := strings.Join(strings.Fields(text), " ")

	var (
		sentences []string
		current   strings.Builder
	)
	runes := []rune(flattened)
	for idx, r := range runes {
		current.WriteRune(r)
		if !isTerminal(r) {
			continue
		}
		atEnd := idx == len(runes)-1
		if atEnd || unicode.IsSpace(runes[idx+1]) {
			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
