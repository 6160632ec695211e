package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"content-analyzer/internal/contentitems"
	"content-analyzer/internal/processingmetrics"
	"content-analyzer/internal/queueentries"
)

// Report aggregates pipeline activity over a period.
type Report struct {
	TotalItems            int            `json:"total_items"`
	ProcessedItems        int            `json:"processed_items"`
	ProcessingRate        string         `json:"processing_rate"`
	AvgProcessingTimeMs   int64          `json:"avg_processing_time_ms"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
	QueueStatus           map[string]int `json:"queue_status"`
	ItemsPerDay           int64          `json:"items_per_day"`
}

// Service computes reports from the record stores.
type Service struct {
	Items   contentitems.Repo
	Queue   queueentries.Repo
	Metrics processingmetrics.Repo
	Now     func() time.Time
}

// Report runs the five window reads concurrently. Any failed read fails the
// whole report.
func (s *Service) Report(ctx context.Context, period Period) (Report, error) {
	since := period.Since(s.now())

	var (
		total, processed int
		sentiments       map[string]int
		avgMs            float64
		queueStatus      map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.Items.CountSince(gctx, since, false)
		if err != nil {
			return fmt.Errorf("count items: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		n, err := s.Items.CountSince(gctx, since, true)
		if err != nil {
			return fmt.Errorf("count processed items: %w", err)
		}
		processed = n
		return nil
	})
	g.Go(func() error {
		m, err := s.Items.SentimentCountsSince(gctx, since)
		if err != nil {
			return fmt.Errorf("sentiment distribution: %w", err)
		}
		sentiments = m
		return nil
	})
	g.Go(func() error {
		avg, _, err := s.Metrics.AverageDurationSince(gctx, since)
		if err != nil {
			return fmt.Errorf("average processing time: %w", err)
		}
		avgMs = avg
		return nil
	})
	g.Go(func() error {
		m, err := s.Queue.StatusCountsSince(gctx, since)
		if err != nil {
			return fmt.Errorf("queue status: %w", err)
		}
		queueStatus = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	if sentiments == nil {
		sentiments = map[string]int{}
	}
	if queueStatus == nil {
		queueStatus = map[string]int{}
	}
	days := period.Days
	if days <= 0 {
		days = 1
	}
	return Report{
		TotalItems:            total,
		ProcessedItems:        processed,
		ProcessingRate:        ProcessingRate(processed, total),
		AvgProcessingTimeMs:   int64(math.Round(avgMs)),
		SentimentDistribution: sentiments,
		QueueStatus:           queueStatus,
		ItemsPerDay:           int64(math.Round(float64(total) / float64(days))),
	}, nil
}

// ProcessingRate formats processed/total as a percentage with one decimal,
// or "0%" when there are no items.
func ProcessingRate(processed, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(processed)/float64(total)*100)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
