package contentitems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts the item and reads back the stored row.
func (r *PGRepo) Create(ctx context.Context, item Item) (Item, error) {
	if err := validate(item); err != nil {
		return Item{}, err
	}
	const query = `
INSERT INTO content_items (id, content, created_at)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	var stored Item
	stored.Content = item.Content
	if err := r.DB.QueryRowContext(ctx, query, item.ID, item.Content, item.CreatedAt).Scan(&stored.ID, &stored.CreatedAt); err != nil {
		return Item{}, fmt.Errorf("insert content item: %w", err)
	}
	return stored, nil
}

// GetByID returns an item by its ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Item, error) {
	const query = `
SELECT id, content, ai_summary, ai_sentiment, ai_tags, created_at, processed_at
FROM content_items
WHERE id = $1`
	var (
		item        Item
		summary     sql.NullString
		sentiment   sql.NullString
		tags        pq.StringArray
		processedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Content, &summary, &sentiment, &tags, &item.CreatedAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("select content item: %w", err)
	}
	if processedAt.Valid {
		item.Analysis = &Analysis{
			Summary:     summary.String,
			Sentiment:   sentiment.String,
			Tags:        []string(tags),
			ProcessedAt: processedAt.Time,
		}
		if item.Analysis.Tags == nil {
			item.Analysis.Tags = []string{}
		}
	}
	return item, nil
}

// UpdateAnalysis writes the analysis columns if the item is still unprocessed.
func (r *PGRepo) UpdateAnalysis(ctx context.Context, id string, analysis Analysis) error {
	const query = `
UPDATE content_items
SET ai_summary = $2, ai_sentiment = $3, ai_tags = $4, processed_at = $5
WHERE id = $1 AND processed_at IS NULL`
	tags := analysis.Tags
	if tags == nil {
		tags = []string{}
	}
	res, err := r.DB.ExecContext(ctx, query, id, analysis.Summary, analysis.Sentiment, pq.StringArray(tags), analysis.ProcessedAt)
	if err != nil {
		return fmt.Errorf("update content item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update content item rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var processed bool
	err = r.DB.QueryRowContext(ctx, `SELECT processed_at IS NOT NULL FROM content_items WHERE id = $1`, id).Scan(&processed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check content item: %w", err)
	}
	if processed {
		return ErrAlreadyProcessed
	}
	return ErrNotFound
}

// Probe runs a trivial read against content_items. An empty table is healthy.
func (r *PGRepo) Probe(ctx context.Context) error {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM content_items LIMIT 1`).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("probe content_items: %w", err)
	}
	return nil
}

// CountSince counts items created at or after since.
func (r *PGRepo) CountSince(ctx context.Context, since time.Time, processedOnly bool) (int, error) {
	q := psql.Select("COUNT(*)").From("content_items").Where(sq.GtOrEq{"created_at": since})
	if processedOnly {
		q = q.Where(sq.NotEq{"processed_at": nil})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count content items: %w", err)
	}
	return n, nil
}

// SentimentCountsSince groups analyzed items created at or after since by sentiment.
func (r *PGRepo) SentimentCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	query, args, err := psql.Select("ai_sentiment", "COUNT(*)").
		From("content_items").
		Where(sq.GtOrEq{"created_at": since}).
		Where(sq.NotEq{"ai_sentiment": nil}).
		GroupBy("ai_sentiment").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sentiment query: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sentiments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			sentiment string
			n         int
		)
		if err := rows.Scan(&sentiment, &n); err != nil {
			return nil, fmt.Errorf("scan sentiment: %w", err)
		}
		out[sentiment] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sentiment rows: %w", err)
	}
	return out, nil
}

var _ Repo = (*PGRepo)(nil)
