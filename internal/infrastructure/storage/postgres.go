package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ports"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// claimSQL atomically moves the oldest rows matching the source status into
// the in-progress status and returns only the claimed rows. SKIP LOCKED
// keeps overlapping cycles from double-claiming.
const claimSQL = `UPDATE articles SET status = $1
WHERE id IN (
    SELECT id FROM articles
    WHERE status = $2
    ORDER BY created_at ASC
    LIMIT $3
    FOR UPDATE SKIP LOCKED
)
RETURNING id, original_url, original_title, original_content,
    COALESCE(final_title, ''), COALESCE(final_content, ''),
    COALESCE(meta_description, ''), COALESCE(focus_keyword, ''),
    COALESCE(category, ''), COALESCE(primary_subject, ''),
    COALESCE(tags, '[]'), COALESCE(wordpress_id, 0),
    COALESCE(wordpress_url, ''), COALESCE(featured_image_url, ''),
    feed_type, status, COALESCE(ai_used, ''),
    COALESCE(processing_time, 0), COALESCE(error_message, ''), created_at`

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists articles and processing logs in Postgres.
type Repository struct {
	db      DB
	builder sq.StatementBuilderType
}

var _ ports.ArticleRepository = (*Repository)(nil)

// NewRepository wires a pgx-compatible pool.
func NewRepository(db DB) *Repository {
	return &Repository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema applies the embedded schema. Idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ExistsByURL reports whether an article with the source URL is already
// known.
func (r *Repository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	query, args, err := r.builder.
		Select("1").
		From("articles").
		Where(sq.Eq{"original_url": url}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.db.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query article by url: %w", err)
	}
	return true, nil
}

// Insert stores a freshly ingested article. A uniqueness violation on the
// source URL is mapped to domain.ErrDuplicateURL.
func (r *Repository) Insert(ctx context.Context, article *domain.Article) error {
	query, args, err := r.builder.
		Insert("articles").
		Columns("original_url", "original_title", "original_content",
			"featured_image_url", "feed_type", "status").
		Values(article.OriginalURL, article.OriginalTitle, article.OriginalContent,
			article.FeaturedImageURL, string(article.FeedType), string(article.Status)).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	err = r.db.QueryRow(ctx, query, args...).Scan(&article.ID, &article.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateURL
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// ClaimBatch atomically transitions up to limit of the oldest articles in
// status from into status to and returns the claimed rows oldest first.
func (r *Repository) ClaimBatch(ctx context.Context, from, to domain.Status, limit int) ([]domain.Article, error) {
	rows, err := r.db.Query(ctx, claimSQL, string(to), string(from), limit)
	if err != nil {
		return nil, fmt.Errorf("claim articles: %w", err)
	}
	defer rows.Close()

	var claimed []domain.Article
	for rows.Next() {
		var (
			a       domain.Article
			tagJSON string
		)
		err := rows.Scan(&a.ID, &a.OriginalURL, &a.OriginalTitle, &a.OriginalContent,
			&a.FinalTitle, &a.FinalContent, &a.MetaDescription, &a.FocusKeyword,
			&a.Category, &a.PrimarySubject, &tagJSON, &a.WordPressID,
			&a.WordPressURL, &a.FeaturedImageURL, &a.FeedType, &a.Status,
			&a.AIUsed, &a.ProcessingTime, &a.ErrorMessage, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan claimed article: %w", err)
		}
		if err := json.Unmarshal([]byte(tagJSON), &a.Tags); err != nil {
			a.Tags = nil
		}
		claimed = append(claimed, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed articles: %w", err)
	}

	// RETURNING does not preserve the inner SELECT's order; restore
	// oldest-first for the stage loop.
	sort.Slice(claimed, func(i, j int) bool {
		return claimed[i].CreatedAt.Before(claimed[j].CreatedAt)
	})
	return claimed, nil
}

// MarkProcessed stores the rewrite outcome and moves the article to
// processed.
func (r *Repository) MarkProcessed(ctx context.Context, article *domain.Article) error {
	tagJSON, err := json.Marshal(article.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	now := time.Now().UTC()
	query, args, err := r.builder.
		Update("articles").
		Set("final_title", article.FinalTitle).
		Set("final_content", article.FinalContent).
		Set("meta_description", article.MetaDescription).
		Set("focus_keyword", article.FocusKeyword).
		Set("category", article.Category).
		Set("primary_subject", article.PrimarySubject).
		Set("tags", string(tagJSON)).
		Set("ai_used", article.AIUsed).
		Set("processing_time", article.ProcessingTime).
		Set("status", string(domain.StatusProcessed)).
		Set("processed_at", now).
		Set("error_message", "").
		Where(sq.Eq{"id": article.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	article.Status = domain.StatusProcessed
	article.ProcessedAt = now
	return nil
}

// MarkPublished stores the remote identifiers and moves the article to
// published.
func (r *Repository) MarkPublished(ctx context.Context, article *domain.Article) error {
	now := time.Now().UTC()
	query, args, err := r.builder.
		Update("articles").
		Set("wordpress_id", article.WordPressID).
		Set("wordpress_url", article.WordPressURL).
		Set("status", string(domain.StatusPublished)).
		Set("published_at", now).
		Where(sq.Eq{"id": article.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	article.Status = domain.StatusPublished
	article.PublishedAt = now
	return nil
}

// MarkFailed records the error and moves the article into the terminal
// failed status.
func (r *Repository) MarkFailed(ctx context.Context, id int64, message string) error {
	query, args, err := r.builder.
		Update("articles").
		Set("status", string(domain.StatusFailed)).
		Set("error_message", message).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// AppendLog inserts one audit record.
func (r *Repository) AppendLog(ctx context.Context, entry domain.ProcessingLog) error {
	var articleID any
	if entry.ArticleID > 0 {
		articleID = entry.ArticleID
	}

	query, args, err := r.builder.
		Insert("processing_logs").
		Columns("article_id", "action", "message", "ai_used", "success").
		Values(articleID, entry.Action, entry.Message, entry.AIUsed, entry.Success).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// DeleteTerminalBefore removes published and failed articles created before
// the cutoff.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := r.builder.
		Delete("articles").
		Where(sq.Eq{"status": []string{string(domain.StatusPublished), string(domain.StatusFailed)}}).
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old articles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus returns how many articles sit in each lifecycle status.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	query, args, err := r.builder.
		Select("status", "COUNT(*)").
		From("articles").
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[domain.Status]int64{}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}
