package contentitems

import "time"

// Item is one submitted unit of text. Analysis stays nil until the provider
// result has been stored, and is written at most once.
type Item struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Analysis  *Analysis `json:"analysis,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Analysis holds the stored provider result.
type Analysis struct {
	Summary     string    `json:"ai_summary"`
	Sentiment   string    `json:"ai_sentiment"`
	Tags        []string  `json:"ai_tags"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Processed reports whether the item carries an analysis.
func (i Item) Processed() bool {
	return i.Analysis != nil
}
