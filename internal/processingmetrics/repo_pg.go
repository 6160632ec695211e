package processingmetrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts the metric and returns the stored row.
func (r *PGRepo) Create(ctx context.Context, m Metric) (Metric, error) {
	if err := validate(m); err != nil {
		return Metric{}, err
	}
	const query = `
INSERT INTO processing_metrics (id, content_id, processing_time_ms, model_used, tokens_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`
	stored := m
	if err := r.DB.QueryRowContext(ctx, query, m.ID, m.ContentID, m.ProcessingTimeMs, m.ModelUsed, m.TokensUsed, m.CreatedAt).
		Scan(&stored.ID, &stored.CreatedAt); err != nil {
		return Metric{}, fmt.Errorf("insert processing metric: %w", err)
	}
	return stored, nil
}

// ListByContentID returns metrics for a content item, oldest first.
func (r *PGRepo) ListByContentID(ctx context.Context, contentID string) ([]Metric, error) {
	query, args, err := psql.Select("id", "content_id", "processing_time_ms", "model_used", "tokens_used", "created_at").
		From("processing_metrics").
		Where(sq.Eq{"content_id": contentID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list processing metrics: %w", err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.ID, &m.ContentID, &m.ProcessingTimeMs, &m.ModelUsed, &m.TokensUsed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan processing metric: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("processing metric rows: %w", err)
	}
	return out, nil
}

// AverageDurationSince averages processing_time_ms over the window.
func (r *PGRepo) AverageDurationSince(ctx context.Context, since time.Time) (float64, int, error) {
	query, args, err := psql.Select("COALESCE(AVG(processing_time_ms), 0)", "COUNT(*)").
		From("processing_metrics").
		Where(sq.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build average query: %w", err)
	}
	var (
		avg float64
		n   int
	)
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&avg, &n); err != nil {
		return 0, 0, fmt.Errorf("average processing time: %w", err)
	}
	return avg, n, nil
}

var _ Repo = (*PGRepo)(nil)
