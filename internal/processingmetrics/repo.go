package processingmetrics

import (
	"context"
	"time"
)

// Repo persists processing metrics.
type Repo interface {
	Create(ctx context.Context, metric Metric) (Metric, error)
	ListByContentID(ctx context.Context, contentID string) ([]Metric, error)
	// AverageDurationSince returns the mean processing time of metrics created
	// at or after since and how many metrics were averaged. The mean is 0
	// when there are none.
	AverageDurationSince(ctx context.Context, since time.Time) (float64, int, error)
}

func validate(m Metric) error {
	if m.ID == "" || m.ContentID == "" || m.ModelUsed == "" {
		return ErrInvalid
	}
	if m.ProcessingTimeMs < 0 || m.TokensUsed < 0 {
		return ErrInvalid
	}
	return nil
}
