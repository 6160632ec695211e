package processingmetrics

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores metrics in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	metrics []Metric
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Create(ctx context.Context, m Metric) (Metric, error) {
	if err := ctx.Err(); err != nil {
		return Metric{}, err
	}
	if err := validate(m); err != nil {
		return Metric{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
	return m, nil
}

func (r *MemoryRepo) ListByContentID(ctx context.Context, contentID string) ([]Metric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Metric
	for _, m := range r.metrics {
		if m.ContentID == contentID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepo) AverageDurationSince(ctx context.Context, since time.Time) (float64, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		sum int64
		n   int
	)
	for _, m := range r.metrics {
		if m.CreatedAt.Before(since) {
			continue
		}
		sum += m.ProcessingTimeMs
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

var _ Repo = (*MemoryRepo)(nil)
