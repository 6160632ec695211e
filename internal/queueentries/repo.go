package queueentries

import (
	"context"
	"time"
)

// Repo persists queue entries.
type Repo interface {
	Create(ctx context.Context, entry Entry) (Entry, error)
	// GetByContentID returns the most recent entry for a content item.
	GetByContentID(ctx context.Context, contentID string) (Entry, error)
	// UpdateStatus moves every entry of the content item to status and sets
	// updated_at to at.
	UpdateStatus(ctx context.Context, contentID string, status Status, at time.Time) error
	StatusCountsSince(ctx context.Context, since time.Time) (map[string]int, error)
}

func validate(entry Entry) error {
	if entry.ID == "" || entry.ContentID == "" || !entry.Status.Valid() {
		return ErrInvalid
	}
	return nil
}
