package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"content-analyzer/internal/shared/telemetry"
)

const DefaultRetryBaseDelay = 300 * time.Millisecond

var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type retryingProvider struct {
	base       Provider
	maxRetries int
	baseDelay  time.Duration
}

// NewRetrying wraps p so transient failures are retried up to maxRetries
// times with exponential backoff. maxRetries <= 0 returns p unchanged.
func NewRetrying(p Provider, maxRetries int, baseDelay time.Duration) Provider {
	if p == nil || maxRetries <= 0 {
		return p
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	return &retryingProvider{base: p, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (r *retryingProvider) Name() string { return r.base.Name() }

func (r *retryingProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	delay := r.baseDelay
	for attempt := 0; ; attempt++ {
		out, err := r.base.Complete(ctx, req)
		if err == nil || attempt >= r.maxRetries || !ShouldRetry(err) || ctx.Err() != nil {
			return out, err
		}
		telemetry.Warn("llm.retry", map[string]any{
			"provider": r.base.Name(),
			"attempt":  attempt + 1,
			"delay_ms": delay.Milliseconds(),
			"error":    err,
		})
		if err := sleep(ctx, delay); err != nil {
			return Completion{}, &ProviderError{Provider: r.base.Name(), Err: err}
		}
		delay *= 2
	}
}

// ShouldRetry reports whether err looks transient: rate limiting, 5xx,
// timeouts and dropped connections.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) && perr.StatusCode > 0 {
		return perr.StatusCode == http.StatusTooManyRequests || perr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection reset",
		"connection refused",
		"connection closed",
		"broken pipe",
		"tls handshake timeout",
		"unexpected eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
