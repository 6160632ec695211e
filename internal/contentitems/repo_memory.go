package contentitems

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores items in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Item
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Item)}
}

// Create stores the item.
func (r *MemoryRepo) Create(ctx context.Context, item Item) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if err := validate(item); err != nil {
		return Item{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[item.ID]; exists {
		return Item{}, ErrInvalid
	}
	r.byID[item.ID] = item
	return item, nil
}

// GetByID returns a copy of the stored item.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.byID[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return cloneItem(item), nil
}

// UpdateAnalysis sets the analysis once.
func (r *MemoryRepo) UpdateAnalysis(ctx context.Context, id string, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if item.Analysis != nil {
		return ErrAlreadyProcessed
	}
	a := analysis
	a.Tags = append([]string{}, analysis.Tags...)
	item.Analysis = &a
	r.byID[id] = item
	return nil
}

// Probe only checks the context.
func (r *MemoryRepo) Probe(ctx context.Context) error {
	return ctx.Err()
}

// CountSince counts items created at or after since.
func (r *MemoryRepo) CountSince(ctx context.Context, since time.Time, processedOnly bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, item := range r.byID {
		if item.CreatedAt.Before(since) {
			continue
		}
		if processedOnly && item.Analysis == nil {
			continue
		}
		n++
	}
	return n, nil
}

// SentimentCountsSince groups analyzed items by sentiment.
func (r *MemoryRepo) SentimentCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int)
	for _, item := range r.byID {
		if item.CreatedAt.Before(since) || item.Analysis == nil {
			continue
		}
		out[item.Analysis.Sentiment]++
	}
	return out, nil
}

func cloneItem(item Item) Item {
	if item.Analysis != nil {
		a := *item.Analysis
		a.Tags = append([]string{}, item.Analysis.Tags...)
		item.Analysis = &a
	}
	return item
}

var _ Repo = (*MemoryRepo)(nil)
