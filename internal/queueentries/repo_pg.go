package queueentries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts the entry and returns the stored row.
func (r *PGRepo) Create(ctx context.Context, entry Entry) (Entry, error) {
	if err := validate(entry); err != nil {
		return Entry{}, err
	}
	const query = `
INSERT INTO ai_queue (id, content_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, content_id, status, created_at, updated_at`
	var stored Entry
	var status string
	err := r.DB.QueryRowContext(ctx, query, entry.ID, entry.ContentID, string(entry.Status), entry.CreatedAt, entry.UpdatedAt).
		Scan(&stored.ID, &stored.ContentID, &status, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("insert queue entry: %w", err)
	}
	stored.Status = Status(status)
	return stored, nil
}

// GetByContentID returns the newest entry for contentID.
func (r *PGRepo) GetByContentID(ctx context.Context, contentID string) (Entry, error) {
	const query = `
SELECT id, content_id, status, created_at, updated_at
FROM ai_queue
WHERE content_id = $1
ORDER BY created_at DESC
LIMIT 1`
	var entry Entry
	var status string
	err := r.DB.QueryRowContext(ctx, query, contentID).
		Scan(&entry.ID, &entry.ContentID, &status, &entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("select queue entry: %w", err)
	}
	entry.Status = Status(status)
	return entry, nil
}

// UpdateStatus sets the status of the content item's entries.
func (r *PGRepo) UpdateStatus(ctx context.Context, contentID string, status Status, at time.Time) error {
	if !status.Valid() {
		return ErrInvalid
	}
	const query = `
UPDATE ai_queue
SET status = $2, updated_at = $3
WHERE content_id = $1`
	res, err := r.DB.ExecContext(ctx, query, contentID, string(status), at)
	if err != nil {
		return fmt.Errorf("update queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update queue entry rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// StatusCountsSince groups entries created at or after since by status.
func (r *PGRepo) StatusCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	query, args, err := psql.Select("status", "COUNT(*)").
		From("ai_queue").
		Where(sq.GtOrEq{"created_at": since}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status query: %w", err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue status: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan queue status: %w", err)
		}
		out[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue status rows: %w", err)
	}
	return out, nil
}

var _ Repo = (*PGRepo)(nil)
