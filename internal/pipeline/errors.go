package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failed run for clients.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindPersistence    Kind = "persistence_error"
	KindProvider       Kind = "provider_error"
	KindResponseFormat Kind = "response_format_error"
)

var (
	ErrEmptyContent    = errors.New("content is required")
	ErrInvalidEncoding = errors.New("content must be valid UTF-8")
	ErrContentTooLarge = errors.New("content is too large")
)

// Error is returned by SubmitAndAnalyze for every aborted run.
// ContentID is set when the content item was created before the failure.
type Error struct {
	Kind      Kind
	Step      Step
	Timeout   bool
	ContentID string
	Err       error
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s at %s (timeout): %v", e.Kind, e.Step, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a pipeline error, or "" for other errors.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}
