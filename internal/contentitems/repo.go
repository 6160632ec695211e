package contentitems

import (
	"context"
	"time"
)

// Repo persists content items.
type Repo interface {
	// Create stores a new unprocessed item and returns it as stored.
	Create(ctx context.Context, item Item) (Item, error)
	GetByID(ctx context.Context, id string) (Item, error)
	// UpdateAnalysis sets all analysis fields together. It fails with
	// ErrAlreadyProcessed when the item already has an analysis.
	UpdateAnalysis(ctx context.Context, id string, analysis Analysis) error
	// Probe performs a trivial read to check store reachability.
	Probe(ctx context.Context) error
	CountSince(ctx context.Context, since time.Time, processedOnly bool) (int, error)
	SentimentCountsSince(ctx context.Context, since time.Time) (map[string]int, error)
}

func validate(item Item) error {
	if item.ID == "" {
		return ErrInvalid
	}
	if item.Analysis != nil {
		return ErrInvalid
	}
	return nil
}
