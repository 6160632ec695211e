package queueentries

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores entries in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Create(ctx context.Context, entry Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if err := validate(entry); err != nil {
		return Entry{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == entry.ID {
			return Entry{}, ErrInvalid
		}
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *MemoryRepo) GetByContentID(ctx context.Context, contentID string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].ContentID == contentID {
			return r.entries[i], nil
		}
	}
	return Entry{}, ErrNotFound
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, contentID string, status Status, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Valid() {
		return ErrInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := false
	for i := range r.entries {
		if r.entries[i].ContentID == contentID {
			r.entries[i].Status = status
			r.entries[i].UpdatedAt = at
			updated = true
		}
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

func (r *MemoryRepo) StatusCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range r.entries {
		if e.CreatedAt.Before(since) {
			continue
		}
		out[string(e.Status)]++
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
