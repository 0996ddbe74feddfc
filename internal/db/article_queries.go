package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"groundwire/internal/model"
)

// articleInsertChunkSize bounds one multi-row INSERT so a large refresh cycle
// never builds a statement with tens of thousands of parameters.
const articleInsertChunkSize = 500

// SaveOutcome reports how a batched write went. A partially failed batch still
// returns the rows that made it in; chunk errors are joined into the returned
// error.
type SaveOutcome struct {
	Saved  int `json:"saved"`
	Failed int `json:"failed"`
}

// ArticleRepo runs article queries against the shared pool.
type ArticleRepo struct {
	pool *Pool
}

func NewArticleRepo(pool *Pool) *ArticleRepo {
	return &ArticleRepo{pool: pool}
}

const articleColumns = `
	a.article_uuid::text,
	a.title,
	a.summary,
	a.body_text,
	a.source_name,
	a.source_url,
	a.published_at,
	a.topic_tags,
	a.content_hash,
	a.signature,
	a.language,
	a.created_at`

// SaveMany inserts articles in chunks, skipping rows whose content hash is
// already stored. One failing chunk does not abort the rest.
func (r *ArticleRepo) SaveMany(ctx context.Context, articles []model.Article) (SaveOutcome, error) {
	var outcome SaveOutcome
	if len(articles) == 0 {
		return outcome, nil
	}

	var chunkErrs []error
	for start := 0; start < len(articles); start += articleInsertChunkSize {
		end := min(start+articleInsertChunkSize, len(articles))
		chunk := articles[start:end]

		saved, err := r.insertChunk(ctx, chunk)
		outcome.Saved += saved
		if err != nil {
			outcome.Failed += len(chunk)
			chunkErrs = append(chunkErrs, fmt.Errorf("insert articles [%d:%d]: %w", start, end, err))
		}
	}

	return outcome, errors.Join(chunkErrs...)
}

func (r *ArticleRepo) insertChunk(ctx context.Context, chunk []model.Article) (int, error) {
	var (
		values strings.Builder
		args   = make([]any, 0, len(chunk)*12)
	)

	for i, article := range chunk {
		tags, err := json.Marshal(article.TopicTags)
		if err != nil {
			return 0, fmt.Errorf("marshal topic tags for %q: %w", article.ID, err)
		}
		signature, err := json.Marshal(article.Signature)
		if err != nil {
			return 0, fmt.Errorf("marshal signature for %q: %w", article.ID, err)
		}

		var publishedAt *time.Time
		if !article.PublishedAt.IsZero() {
			utc := article.PublishedAt.UTC()
			publishedAt = &utc
		}

		if i > 0 {
			values.WriteString(",\n\t")
		}
		base := i * 12
		fmt.Fprintf(&values,
			"($%d::uuid, $%d, $%d, $%d, $%d, $%d, $%d, $%d::jsonb, $%d, $%d::jsonb, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11, base+12)
		args = append(args,
			article.ID,
			article.Title,
			article.Summary,
			article.Body,
			article.SourceName,
			article.SourceURL,
			publishedAt,
			json.RawMessage(tags),
			article.ContentHash,
			json.RawMessage(signature),
			article.Language,
			article.CreatedAt.UTC(),
		)
	}

	q := fmt.Sprintf(`
INSERT INTO wire.articles (
	article_uuid,
	title,
	summary,
	body_text,
	source_name,
	source_url,
	published_at,
	topic_tags,
	content_hash,
	signature,
	language,
	created_at
)
VALUES
	%s
ON CONFLICT (content_hash) DO NOTHING
`, values.String())

	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// GetRecent returns articles created inside the trailing window, newest first.
func (r *ArticleRepo) GetRecent(ctx context.Context, hoursBack int) ([]model.Article, error) {
	if hoursBack <= 0 {
		return nil, fmt.Errorf("hoursBack must be > 0")
	}

	q := fmt.Sprintf(`
SELECT%s
FROM wire.articles a
WHERE a.created_at >= now() - ($1 * INTERVAL '1 hour')
ORDER BY a.created_at DESC, a.article_id DESC
`, articleColumns)

	rows, err := r.pool.Query(ctx, q, hoursBack)
	if err != nil {
		return nil, fmt.Errorf("query recent articles: %w", err)
	}
	defer rows.Close()

	return scanArticleRows(rows)
}

// GetByID fetches one article by its public UUID.
func (r *ArticleRepo) GetByID(ctx context.Context, articleUUID string) (*model.Article, error) {
	trimmed := strings.TrimSpace(articleUUID)
	if trimmed == "" {
		return nil, fmt.Errorf("article UUID is required")
	}

	q := fmt.Sprintf(`
SELECT%s
FROM wire.articles a
WHERE a.article_uuid = $1::uuid
`, articleColumns)

	article, err := scanArticleRow(r.pool.QueryRow(ctx, q, trimmed))
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query article by id: %w", err)
	}
	return article, nil
}

// GetByContentHash fetches the article whose normalized text hashes to hash.
func (r *ArticleRepo) GetByContentHash(ctx context.Context, hash string) (*model.Article, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, fmt.Errorf("content hash is required")
	}

	q := fmt.Sprintf(`
SELECT%s
FROM wire.articles a
WHERE a.content_hash = $1
`, articleColumns)

	article, err := scanArticleRow(r.pool.QueryRow(ctx, q, trimmed))
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query article by content hash: %w", err)
	}
	return article, nil
}

// Search matches the query case-insensitively against title, summary, and body,
// newest first.
func (r *ArticleRepo) Search(ctx context.Context, query string, limit int) ([]model.Article, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	q := fmt.Sprintf(`
SELECT%s
FROM wire.articles a
WHERE a.title ILIKE '%%' || $1 || '%%'
   OR a.summary ILIKE '%%' || $1 || '%%'
   OR a.body_text ILIKE '%%' || $1 || '%%'
ORDER BY a.created_at DESC, a.article_id DESC
LIMIT $2
`, articleColumns)

	rows, err := r.pool.Query(ctx, q, trimmed, limit)
	if err != nil {
		return nil, fmt.Errorf("query article search: %w", err)
	}
	defer rows.Close()

	return scanArticleRows(rows)
}

// CountOlderThan reports how many articles a DeleteOlderThan with the same
// cutoff would remove. Used for dry-run previews.
func (r *ArticleRepo) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffUTC := cutoff.UTC()
	if cutoffUTC.IsZero() {
		return 0, fmt.Errorf("cutoff time is required")
	}

	const q = `
SELECT COUNT(*)
FROM wire.articles
WHERE created_at < $1
`
	var count int64
	if err := r.pool.QueryRow(ctx, q, cutoffUTC).Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles before=%s: %w", cutoffUTC.Format(time.RFC3339), err)
	}
	return count, nil
}

// DeleteOlderThan hard-deletes articles created before the cutoff and returns
// the number of rows removed.
func (r *ArticleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffUTC := cutoff.UTC()
	if cutoffUTC.IsZero() {
		return 0, fmt.Errorf("cutoff time is required")
	}

	tx, err := r.pool.BeginTx(ctx, TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const q = `
DELETE FROM wire.articles
WHERE created_at < $1
`
	tag, err := tx.Exec(ctx, q, cutoffUTC)
	if err != nil {
		return 0, fmt.Errorf("delete articles before=%s: %w", cutoffUTC.Format(time.RFC3339), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanArticleRows(rows *Rows) ([]model.Article, error) {
	articles := make([]model.Article, 0, 64)
	for rows.Next() {
		article, err := scanArticle(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return articles, nil
}

func scanArticleRow(row *Row) (*model.Article, error) {
	return scanArticle(row.Scan)
}

func scanArticle(scan func(dest ...any) error) (*model.Article, error) {
	var (
		article     model.Article
		publishedAt *time.Time
		tagsRaw     []byte
		sigRaw      []byte
	)

	if err := scan(
		&article.ID,
		&article.Title,
		&article.Summary,
		&article.Body,
		&article.SourceName,
		&article.SourceURL,
		&publishedAt,
		&tagsRaw,
		&article.ContentHash,
		&sigRaw,
		&article.Language,
		&article.CreatedAt,
	); err != nil {
		return nil, err
	}

	if publishedAt != nil {
		article.PublishedAt = publishedAt.UTC()
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &article.TopicTags); err != nil {
			return nil, fmt.Errorf("decode topic tags for %q: %w", article.ID, err)
		}
	}
	if len(sigRaw) > 0 {
		if err := json.Unmarshal(sigRaw, &article.Signature); err != nil {
			return nil, fmt.Errorf("decode signature for %q: %w", article.ID, err)
		}
	}
	article.CreatedAt = article.CreatedAt.UTC()

	return &article, nil
}
