package processingmetrics

import "time"

// Metric records the cost of one successful analysis run. Metrics are never
// updated after they are written.
type Metric struct {
	ID               string    `json:"id"`
	ContentID        string    `json:"content_id"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	ModelUsed        string    `json:"model_used"`
	TokensUsed       int       `json:"tokens_used"`
	CreatedAt        time.Time `json:"created_at"`
}
