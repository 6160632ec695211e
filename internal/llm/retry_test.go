package llm

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"content-analyzer/internal/shared/telemetry"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Completion{}, s.errs[i]
	}
	return Completion{Text: "{}", Model: "scripted-1"}, nil
}

func withNoSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	prev := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	restore := telemetry.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() {
		sleep = prev
		restore()
	})
	return &delays
}

func TestNewRetryingZeroRetriesIsSingleCall(t *testing.T) {
	base := &scriptedProvider{errs: []error{&ProviderError{Provider: "scripted", StatusCode: 503, Err: errors.New("unavailable")}}}
	p := NewRetrying(base, 0, time.Millisecond)
	if p != Provider(base) {
		t.Fatalf("expected base provider returned unchanged")
	}
	if _, err := p.Complete(context.Background(), Request{}); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected one call, got %d", base.calls)
	}
}

func TestRetryingRecoversFromTransientFailures(t *testing.T) {
	delays := withNoSleep(t)
	transient := &ProviderError{Provider: "scripted", StatusCode: http.StatusTooManyRequests, Err: errors.New("rate limited")}
	base := &scriptedProvider{errs: []error{transient, transient}}

	out, err := NewRetrying(base, 3, 100*time.Millisecond).Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Model != "scripted-1" || base.calls != 3 {
		t.Fatalf("unexpected result %+v after %d calls", out, base.calls)
	}
	if len(*delays) != 2 || (*delays)[0] != 100*time.Millisecond || (*delays)[1] != 200*time.Millisecond {
		t.Fatalf("expected exponential backoff, got %v", *delays)
	}
}

func TestRetryingStopsOnPermanentFailure(t *testing.T) {
	withNoSleep(t)
	base := &scriptedProvider{errs: []error{&ProviderError{Provider: "scripted", StatusCode: http.StatusUnauthorized, Err: errors.New("bad key")}}}

	_, err := NewRetrying(base, 3, time.Millisecond).Complete(context.Background(), Request{})
	if err == nil || base.calls != 1 {
		t.Fatalf("expected single failed call, got err=%v calls=%d", err, base.calls)
	}
}

func TestRetryingGivesUpAfterMaxRetries(t *testing.T) {
	withNoSleep(t)
	transient := &ProviderError{Provider: "scripted", StatusCode: 502, Err: errors.New("bad gateway")}
	base := &scriptedProvider{errs: []error{transient, transient, transient, transient}}

	_, err := NewRetrying(base, 2, time.Millisecond).Complete(context.Background(), Request{})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if base.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", base.calls)
	}
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "5xx", err: &ProviderError{Provider: "p", StatusCode: 500, Err: errors.New("x")}, want: true},
		{name: "400", err: &ProviderError{Provider: "p", StatusCode: 400, Err: errors.New("x")}, want: false},
		{name: "deadline", err: &ProviderError{Provider: "p", Err: context.DeadlineExceeded}, want: true},
		{name: "canceled", err: &ProviderError{Provider: "p", Err: context.Canceled}, want: false},
		{name: "reset", err: errors.New("read tcp: connection reset by peer"), want: true},
		{name: "not configured", err: &ProviderError{Provider: "p", Err: ErrNotConfigured}, want: false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPlaceholderProviderFails(t *testing.T) {
	_, err := PlaceholderProvider{}.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrNotConfigured) || !errors.Is(err, ErrProvider) {
		t.Fatalf("expected not-configured provider error, got %v", err)
	}
}
