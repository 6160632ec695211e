package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sentiment is the overall tone assigned to a piece of content.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three known sentiments.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Analysis is the validated provider output.
type Analysis struct {
	Summary   string    `json:"summary"`
	Sentiment Sentiment `json:"sentiment"`
	Tags      []string  `json:"tags"`
}

const fence = "```"

// StripFences returns the body of a markdown code fence wrapping raw, or the
// trimmed text when raw is a bare JSON object or has no fence. The body runs
// to the last fence so backticks inside values survive. An unterminated fence
// runs to the end.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "{") {
		return text
	}
	start := strings.Index(text, fence)
	if start < 0 {
		return text
	}
	body := text[start+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isFenceInfo(body[:nl]) {
		body = body[nl+1:]
	} else {
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isFenceInfo(line string) bool {
	return !strings.ContainsAny(line, "{}[]\"")
}

type analysisWire struct {
	Summary   json.RawMessage `json:"summary"`
	Sentiment json.RawMessage `json:"sentiment"`
	Tags      json.RawMessage `json:"tags"`
}

// ParseAnalysis strips fences from raw and decodes it strictly. Unknown keys
// are ignored. Every failure wraps ErrResponseFormat.
func ParseAnalysis(raw string) (Analysis, error) {
	body := StripFences(raw)
	if body == "" {
		return Analysis{}, formatErr("empty response")
	}
	if body[0] != '{' {
		return Analysis{}, formatErr("response is not a JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var wire analysisWire
	if err := dec.Decode(&wire); err != nil {
		return Analysis{}, formatErr("invalid JSON: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Analysis{}, formatErr("unexpected data after JSON object")
	}

	var out Analysis
	if isAbsent(wire.Summary) {
		return Analysis{}, formatErr("missing summary")
	}
	if err := json.Unmarshal(wire.Summary, &out.Summary); err != nil {
		return Analysis{}, formatErr("summary must be a string")
	}
	if strings.TrimSpace(out.Summary) == "" {
		return Analysis{}, formatErr("summary is empty")
	}

	if isAbsent(wire.Sentiment) {
		return Analysis{}, formatErr("missing sentiment")
	}
	var sentiment string
	if err := json.Unmarshal(wire.Sentiment, &sentiment); err != nil {
		return Analysis{}, formatErr("sentiment must be a string")
	}
	out.Sentiment = Sentiment(sentiment)
	if !out.Sentiment.Valid() {
		return Analysis{}, formatErr("sentiment %q is not one of positive, negative or neutral", sentiment)
	}

	if isAbsent(wire.Tags) {
		return Analysis{}, formatErr("missing tags")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(wire.Tags, &items); err != nil {
		return Analysis{}, formatErr("tags must be a list of strings")
	}
	out.Tags = make([]string, 0, len(items))
	for i, item := range items {
		var tag string
		if isAbsent(item) || json.Unmarshal(item, &tag) != nil {
			return Analysis{}, formatErr("tags[%d] is not a string", i)
		}
		out.Tags = append(out.Tags, tag)
	}
	return out, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func formatErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResponseFormat, fmt.Sprintf(format, args...))
}
