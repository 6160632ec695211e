package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrProvider marks failures of the outbound provider call.
	ErrProvider = errors.New("provider call failed")
	// ErrResponseFormat marks provider output that does not match the analysis shape.
	ErrResponseFormat = errors.New("provider response format invalid")
	// ErrNotConfigured is returned by PlaceholderProvider.
	ErrNotConfigured = errors.New("llm provider not configured")
)

// Provider is an external text-analysis backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Request is a single-turn completion request.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Completion is the provider envelope normalized to one text payload.
type Completion struct {
	Text          string
	Model         string
	InputTokens   int
	OutputTokens  int
	UsageReported bool
}

// Tokens returns input plus output tokens, or 0 when the provider reported no usage.
func (c Completion) Tokens() int {
	if !c.UsageReported {
		return 0
	}
	return c.InputTokens + c.OutputTokens
}

// ProviderError describes a failed provider call. It matches ErrProvider via errors.Is.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: http status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// IsTimeout reports whether err came from a deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// PlaceholderProvider stands in when no provider credentials are configured.
type PlaceholderProvider struct{}

func (PlaceholderProvider) Name() string { return "placeholder" }

// Complete always fails with ErrNotConfigured.
func (PlaceholderProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	_ = ctx
	_ = req
	return Completion{}, &ProviderError{Provider: "placeholder", Err: ErrNotConfigured}
}
