package health

import (
	"context"
	"time"
)

// Prober performs a trivial read against the record store.
type Prober interface {
	Probe(ctx context.Context) error
}

// Checks lists the individual probes of a healthy report.
type Checks struct {
	Database       string `json:"database"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// Report is the health payload. Checks and Uptime are set when healthy, Error
// when not.
type Report struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Checks    *Checks `json:"checks,omitempty"`
	Uptime    float64 `json:"uptime,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Healthy reports whether the store probe succeeded.
func (r Report) Healthy() bool {
	return r.Status == "healthy"
}

// Service encapsulates health-related checks.
type Service struct {
	Store   Prober
	Timeout time.Duration
	Started time.Time
	Now     func() time.Time
}

// NewService constructs a health service whose uptime starts now.
func NewService(store Prober) *Service {
	return &Service{Store: store, Timeout: 5 * time.Second, Started: time.Now()}
}

// Check probes the store and reports the outcome.
func (s *Service) Check(ctx context.Context) Report {
	start := s.now()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var err error
	if s.Store == nil {
		err = errNoStore
	} else {
		err = s.Store.Probe(ctx)
	}
	end := s.now()
	timestamp := end.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if err != nil {
		return Report{Status: "unhealthy", Timestamp: timestamp, Error: err.Error()}
	}
	return Report{
		Status:    "healthy",
		Timestamp: timestamp,
		Checks: &Checks{
			Database:       "connected",
			ResponseTimeMs: end.Sub(start).Milliseconds(),
		},
		Uptime: end.Sub(s.Started).Seconds(),
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
