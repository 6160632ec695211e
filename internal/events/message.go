package events

import (
	"encoding/json"
	"fmt"
)

// TypeAnalysisCompleted is the event type sent after a successful run.
const TypeAnalysisCompleted = "analysis.completed"

const currentVersion = 1

// AnalysisCompleted is the payload published after a content item has been analyzed.
type AnalysisCompleted struct {
	Type             string   `json:"type"`
	Version          int      `json:"version"`
	ContentID        string   `json:"contentId"`
	ContentSHA256    string   `json:"contentSha256"`
	Sentiment        string   `json:"sentiment"`
	Tags             []string `json:"tags"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
	ModelUsed        string   `json:"modelUsed"`
	TokensUsed       int      `json:"tokensUsed"`
	RequestID        string   `json:"requestId,omitempty"`
	CompletedAt      string   `json:"completedAt"`
}

// Encode fills Type and Version when unset and returns the JSON body.
func Encode(evt AnalysisCompleted) ([]byte, error) {
	if evt.Type == "" {
		evt.Type = TypeAnalysisCompleted
	}
	if evt.Version == 0 {
		evt.Version = currentVersion
	}
	if evt.Tags == nil {
		evt.Tags = []string{}
	}
	return json.Marshal(evt)
}

// Decode parses an event body and rejects other event types. It is the
// consumer side of Encode for services reading the events queue.
func Decode(payload []byte) (AnalysisCompleted, error) {
	var evt AnalysisCompleted
	if err := json.Unmarshal(payload, &evt); err != nil {
		return AnalysisCompleted{}, fmt.Errorf("decode event: %w", err)
	}
	if evt.Type != TypeAnalysisCompleted {
		return AnalysisCompleted{}, fmt.Errorf("decode event: unexpected type %q", evt.Type)
	}
	return evt, nil
}
