package queueentries

import "time"

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	// StatusFailed is only written when failed-run marking is enabled.
	StatusFailed Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Entry tracks one analysis run for a content item.
type Entry struct {
	ID        string    `json:"id"`
	ContentID string    `json:"content_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
