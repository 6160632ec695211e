package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"content-analyzer/internal/contentitems"
	"content-analyzer/internal/events"
	"content-analyzer/internal/llm"
	"content-analyzer/internal/processingmetrics"
	"content-analyzer/internal/queueentries"
	"content-analyzer/internal/shared/metrics"
	"content-analyzer/internal/shared/storage/object"
	"content-analyzer/internal/shared/telemetry"
	"content-analyzer/internal/shared/util"
)

const (
	DefaultProviderTimeout = 30 * time.Second
	DefaultMaxContentBytes = 100 * 1024
)

// Service runs content through the analysis pipeline. Archive and Events are
// optional.
type Service struct {
	Items    contentitems.Repo
	Queue    queueentries.Repo
	Metrics  processingmetrics.Repo
	Provider llm.Provider
	// Model is recorded when the provider does not report the model it used.
	Model string

	Archive object.ObjectStore
	Events  events.Publisher

	ProviderTimeout time.Duration
	MaxContentBytes int
	MaxTokens       int
	// MarkQueueFailed moves the queue entry to failed when a run aborts after
	// the entry was created. Off by default, leaving it in processing.
	MarkQueueFailed bool

	Now   func() time.Time
	NewID func() string
}

// Result is the outcome of a successful run.
type Result struct {
	ID               string   `json:"id"`
	Summary          string   `json:"summary"`
	Sentiment        string   `json:"sentiment"`
	Tags             []string `json:"tags"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`

	Model      string            `json:"-"`
	TokensUsed int               `json:"-"`
	Advisories []AdvisoryFailure `json:"-"`
}

// run carries per-submission state used for logging.
type run struct {
	requestID   string
	contentID   string
	contentHash string
	start       time.Time
	advisories  []AdvisoryFailure
}

func (r *run) fields(extra map[string]any) map[string]any {
	fields := map[string]any{
		"request_id": r.requestID,
	}
	if r.contentID != "" {
		fields["content_id"] = r.contentID
	}
	if r.contentHash != "" {
		fields["content_sha256"] = r.contentHash
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

// SubmitAndAnalyze stores content, analyzes it with the provider and records
// the result. Every returned error is a *Error.
func (s *Service) SubmitAndAnalyze(ctx context.Context, content string) (Result, error) {
	r := &run{requestID: requestIDFromContext(ctx), start: s.now()}
	if content != "" {
		r.contentHash = util.ContentHash(content)
	}
	metrics.IncPipelineStarted()

	if err := s.validate(content); err != nil {
		return Result{}, s.fail(r, &Error{Kind: KindValidation, Step: StepValidate, Err: err})
	}

	item, err := s.Items.Create(ctx, contentitems.Item{
		ID:        s.newID(),
		Content:   content,
		CreatedAt: r.start,
	})
	if err != nil {
		return Result{}, s.fail(r, &Error{Kind: KindPersistence, Step: StepCreateItem, Err: fmt.Errorf("create content item: %w", err)})
	}
	r.contentID = item.ID
	s.step(r, StepCreateItem)

	if _, err := s.Queue.Create(ctx, queueentries.Entry{
		ID:        s.newID(),
		ContentID: item.ID,
		Status:    queueentries.StatusProcessing,
		CreatedAt: r.start,
		UpdatedAt: r.start,
	}); err != nil {
		s.advisory(r, StepEnqueue, fmt.Errorf("create queue entry: %w", err))
	}

	completion, err := s.complete(ctx, llm.NewAnalysisRequest(content, s.MaxTokens))
	if err != nil {
		s.markFailed(ctx, r)
		return Result{}, s.fail(r, &Error{Kind: KindProvider, Step: StepAnalyze, Timeout: llm.IsTimeout(err), Err: err})
	}
	respondedAt := s.now()
	s.step(r, StepAnalyze)
	s.archive(ctx, r, completion.Text, respondedAt)

	analysis, err := llm.ParseAnalysis(completion.Text)
	if err != nil {
		s.markFailed(ctx, r)
		return Result{}, s.fail(r, &Error{Kind: KindResponseFormat, Step: StepParse, Err: err})
	}

	processedAt := s.now()
	durationMs := processedAt.Sub(r.start).Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}

	if err := s.Items.UpdateAnalysis(ctx, item.ID, contentitems.Analysis{
		Summary:     analysis.Summary,
		Sentiment:   string(analysis.Sentiment),
		Tags:        analysis.Tags,
		ProcessedAt: processedAt,
	}); err != nil {
		s.markFailed(ctx, r)
		return Result{}, s.fail(r, &Error{Kind: KindPersistence, Step: StepStoreAnalysis, Err: fmt.Errorf("store analysis: %w", err)})
	}
	s.step(r, StepStoreAnalysis)

	if err := s.Queue.UpdateStatus(ctx, item.ID, queueentries.StatusCompleted, s.now()); err != nil {
		s.advisory(r, StepCompleteQueue, fmt.Errorf("complete queue entry: %w", err))
	}

	model := s.modelUsed(completion)
	tokens := completion.Tokens()
	if _, err := s.Metrics.Create(ctx, processingmetrics.Metric{
		ID:               s.newID(),
		ContentID:        item.ID,
		ProcessingTimeMs: durationMs,
		ModelUsed:        model,
		TokensUsed:       tokens,
		CreatedAt:        processedAt,
	}); err != nil {
		s.advisory(r, StepRecordMetric, fmt.Errorf("record processing metric: %w", err))
	}

	if s.Events != nil {
		err := s.Events.Publish(ctx, events.AnalysisCompleted{
			ContentID:        item.ID,
			ContentSHA256:    r.contentHash,
			Sentiment:        string(analysis.Sentiment),
			Tags:             analysis.Tags,
			ProcessingTimeMs: durationMs,
			ModelUsed:        model,
			TokensUsed:       tokens,
			RequestID:        r.requestID,
			CompletedAt:      processedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			s.advisory(r, StepPublishEvent, fmt.Errorf("publish completion event: %w", err))
		}
	}

	metrics.IncPipelineCompleted()
	metrics.ObservePipelineDurationMs(float64(durationMs))
	telemetry.Info("pipeline.completed", r.fields(map[string]any{
		"duration_ms": durationMs,
		"model":       model,
		"tokens_used": tokens,
		"sentiment":   string(analysis.Sentiment),
		"advisories":  len(r.advisories),
	}))

	return Result{
		ID:               item.ID,
		Summary:          analysis.Summary,
		Sentiment:        string(analysis.Sentiment),
		Tags:             analysis.Tags,
		ProcessingTimeMs: durationMs,
		Model:            model,
		TokensUsed:       tokens,
		Advisories:       r.advisories,
	}, nil
}

func (s *Service) validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if !utf8.ValidString(content) {
		return ErrInvalidEncoding
	}
	if limit := s.maxContentBytes(); len(content) > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrContentTooLarge, len(content), limit)
	}
	return nil
}

// complete calls the provider under the configured timeout.
func (s *Service) complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	provider := s.Provider
	if provider == nil {
		provider = llm.PlaceholderProvider{}
	}
	metrics.IncProviderRequest(provider.Name())

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout())
	defer cancel()

	completion, err := provider.Complete(callCtx, req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
		}
		if !errors.Is(err, llm.ErrProvider) {
			err = &llm.ProviderError{Provider: provider.Name(), Err: err}
		}
		return llm.Completion{}, err
	}
	metrics.AddProviderTokens(completion.Tokens())
	return completion, nil
}

func (s *Service) archive(ctx context.Context, r *run, text string, at time.Time) {
	if s.Archive == nil {
		return
	}
	key := object.RawResponseKey(r.contentID, at)
	if _, err := s.Archive.Put(ctx, key, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		s.advisory(r, StepArchive, fmt.Errorf("archive raw response key=%s: %w", key, err))
	}
}

func (s *Service) markFailed(ctx context.Context, r *run) {
	if !s.MarkQueueFailed || r.contentID == "" {
		return
	}
	if err := s.Queue.UpdateStatus(ctx, r.contentID, queueentries.StatusFailed, s.now()); err != nil {
		s.advisory(r, StepMarkQueueFailed, fmt.Errorf("mark queue entry failed: %w", err))
	}
}

func (s *Service) step(r *run, step Step) {
	telemetry.Info("pipeline.step", r.fields(map[string]any{
		"step":       string(step),
		"elapsed_ms": s.now().Sub(r.start).Milliseconds(),
	}))
}

func (s *Service) advisory(r *run, step Step, err error) {
	if PolicyFor(step) != Advisory {
		return
	}
	r.advisories = append(r.advisories, AdvisoryFailure{Step: step, Err: err})
	metrics.IncAdvisoryFailure(string(step))
	telemetry.Error("pipeline.advisory_failed", r.fields(map[string]any{
		"step":  string(step),
		"error": err,
	}))
}

func (s *Service) fail(r *run, perr *Error) *Error {
	perr.ContentID = r.contentID
	metrics.IncPipelineFailed(string(perr.Kind))
	fields := r.fields(map[string]any{
		"kind":        string(perr.Kind),
		"step":        string(perr.Step),
		"error":       perr.Err,
		"duration_ms": s.now().Sub(r.start).Milliseconds(),
	})
	if perr.Timeout {
		fields["timeout"] = true
	}
	if perr.Kind == KindValidation {
		telemetry.Warn("pipeline.failed", fields)
	} else {
		telemetry.Error("pipeline.failed", fields)
	}
	return perr
}

func (s *Service) modelUsed(c llm.Completion) string {
	if c.Model != "" {
		return c.Model
	}
	if s.Model != "" {
		return s.Model
	}
	if s.Provider != nil {
		return s.Provider.Name()
	}
	return "unknown"
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) providerTimeout() time.Duration {
	if s.ProviderTimeout > 0 {
		return s.ProviderTimeout
	}
	return DefaultProviderTimeout
}

func (s *Service) maxContentBytes() int {
	if s.MaxContentBytes > 0 {
		return s.MaxContentBytes
	}
	return DefaultMaxContentBytes
}
