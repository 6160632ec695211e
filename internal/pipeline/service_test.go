package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"content-analyzer/internal/contentitems"
	"content-analyzer/internal/events"
	"content-analyzer/internal/llm"
	"content-analyzer/internal/processingmetrics"
	"content-analyzer/internal/queueentries"
	"content-analyzer/internal/shared/storage/object"
	"content-analyzer/internal/shared/storage/object/local"
	"content-analyzer/internal/shared/telemetry"
	"content-analyzer/internal/shared/util"
)

const launchResponse = `{"summary":"A product launch went very well.","sentiment":"positive","tags":["product","launch","success"]}`

type fakeProvider struct {
	mu      sync.Mutex
	text    string
	model   string
	input   int
	output  int
	err     error
	block   bool
	prompts []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return llm.Completion{}, &llm.ProviderError{Provider: "fake", Err: ctx.Err()}
	}
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{
		Text:          f.text,
		Model:         f.model,
		InputTokens:   f.input,
		OutputTokens:  f.output,
		UsageReported: f.input+f.output > 0,
	}, nil
}

type fixture struct {
	svc     *Service
	items   *contentitems.MemoryRepo
	queue   *queueentries.MemoryRepo
	metrics *processingmetrics.MemoryRepo
}

func newFixture(p llm.Provider) fixture {
	f := fixture{
		items:   contentitems.NewMemoryRepo(),
		queue:   queueentries.NewMemoryRepo(),
		metrics: processingmetrics.NewMemoryRepo(),
	}
	f.svc = &Service{
		Items:    f.items,
		Queue:    f.queue,
		Metrics:  f.metrics,
		Provider: p,
		Model:    "configured-model",
	}
	return f
}

var epoch = time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

func (f fixture) itemCount(t *testing.T) int {
	t.Helper()
	n, err := f.items.CountSince(context.Background(), time.Time{}, false)
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	return n
}

func quietLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	t.Cleanup(restore)
	return &buf
}

func TestSubmitAndAnalyzeSuccess(t *testing.T) {
	quietLogs(t)
	provider := &fakeProvider{text: launchResponse, model: "claude-sonnet-4-20250514", input: 40, output: 25}
	f := newFixture(provider)
	ctx := context.Background()

	res, err := f.svc.SubmitAndAnalyze(ctx, "The product launch was a huge success!")
	if err != nil {
		t.Fatalf("SubmitAndAnalyze: %v", err)
	}
	if res.Sentiment != "positive" || res.Summary == "" || len(res.Tags) == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Advisories) != 0 {
		t.Fatalf("expected no advisory failures, got %+v", res.Advisories)
	}
	if !strings.HasSuffix(provider.prompts[0], "The product launch was a huge success!") {
		t.Fatalf("expected content appended verbatim, got %q", provider.prompts[0])
	}

	item, err := f.items.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !item.Processed() || item.Analysis.Summary == "" || item.Analysis.Sentiment != "positive" || len(item.Analysis.Tags) != 3 {
		t.Fatalf("expected fully analyzed item, got %+v", item.Analysis)
	}

	entry, err := f.queue.GetByContentID(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetByContentID: %v", err)
	}
	if entry.Status != queueentries.StatusCompleted {
		t.Fatalf("expected completed queue entry, got %q", entry.Status)
	}

	list, err := f.metrics.ListByContentID(ctx, res.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one metric, got %v / %v", list, err)
	}
	if list[0].TokensUsed != 65 || list[0].ModelUsed != "claude-sonnet-4-20250514" || list[0].ProcessingTimeMs < 0 {
		t.Fatalf("unexpected metric: %+v", list[0])
	}
}

func TestSubmitAndAnalyzeDurationIsMetricTimeMinusSubmission(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{text: launchResponse})
	calls := 0
	f.svc.Now = func() time.Time {
		calls++
		if calls == 1 {
			return epoch
		}
		return epoch.Add(1500 * time.Millisecond)
	}

	res, err := f.svc.SubmitAndAnalyze(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("SubmitAndAnalyze: %v", err)
	}
	if res.ProcessingTimeMs != 1500 {
		t.Fatalf("expected 1500ms, got %d", res.ProcessingTimeMs)
	}
	list, _ := f.metrics.ListByContentID(context.Background(), res.ID)
	if len(list) != 1 || list[0].ProcessingTimeMs != 1500 || !list[0].CreatedAt.Equal(epoch.Add(1500*time.Millisecond)) {
		t.Fatalf("unexpected metric: %+v", list)
	}
	if res.Model != "configured-model" || res.TokensUsed != 0 {
		t.Fatalf("expected configured model and zero tokens when unreported, got %q / %d", res.Model, res.TokensUsed)
	}
}

func TestSubmitAndAnalyzeClampsNegativeDuration(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{text: launchResponse})
	calls := 0
	f.svc.Now = func() time.Time {
		calls++
		if calls == 1 {
			return epoch
		}
		return epoch.Add(-time.Second)
	}
	res, err := f.svc.SubmitAndAnalyze(context.Background(), "clock skew")
	if err != nil {
		t.Fatalf("SubmitAndAnalyze: %v", err)
	}
	if res.ProcessingTimeMs != 0 {
		t.Fatalf("expected clamped duration, got %d", res.ProcessingTimeMs)
	}
}

func TestSubmitAndAnalyzeValidation(t *testing.T) {
	quietLogs(t)
	cases := []struct {
		name    string
		content string
		want    error
	}{
		{name: "empty", content: "", want: ErrEmptyContent},
		{name: "whitespace", content: " \n\t ", want: ErrEmptyContent},
		{name: "invalid utf8", content: "bad \xff bytes", want: ErrInvalidEncoding},
		{name: "too large", content: strings.Repeat("a", 65), want: ErrContentTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{text: launchResponse}
			f := newFixture(provider)
			f.svc.MaxContentBytes = 64

			_, err := f.svc.SubmitAndAnalyze(context.Background(), tc.content)
			var perr *Error
			if !errors.As(err, &perr) || perr.Kind != KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if n := f.itemCount(t); n != 0 {
				t.Fatalf("expected no content item, got %d", n)
			}
			if len(provider.prompts) != 0 {
				t.Fatalf("provider must not be called")
			}
		})
	}
}

func TestSubmitAndAnalyzeProviderFailureLeavesItemUnprocessed(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{err: &llm.ProviderError{Provider: "fake", StatusCode: 500, Err: errors.New("upstream unavailable")}})
	f.svc.NewID = sequentialIDs()

	_, err := f.svc.SubmitAndAnalyze(context.Background(), "The product launch was a huge success!")
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindProvider || perr.Timeout {
		t.Fatalf("expected non-timeout provider error, got %v", err)
	}
	if !errors.Is(err, llm.ErrProvider) {
		t.Fatalf("expected ErrProvider in chain, got %v", err)
	}
	if perr.ContentID != "id-1" {
		t.Fatalf("expected content id on error, got %q", perr.ContentID)
	}

	item, err := f.items.GetByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Processed() {
		t.Fatalf("expected item without analysis")
	}
	entry, _ := f.queue.GetByContentID(context.Background(), "id-1")
	if entry.Status != queueentries.StatusProcessing {
		t.Fatalf("expected queue entry to stay processing, got %q", entry.Status)
	}
	list, _ := f.metrics.ListByContentID(context.Background(), "id-1")
	if len(list) != 0 {
		t.Fatalf("expected no metric on failure, got %d", len(list))
	}
}

func TestSubmitAndAnalyzeProviderTimeout(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{block: true})
	f.svc.ProviderTimeout = 20 * time.Millisecond

	_, err := f.svc.SubmitAndAnalyze(context.Background(), "slow provider")
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !perr.Timeout || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout flag and DeadlineExceeded, got %+v", perr)
	}
	if StatusFor(perr) != 504 {
		t.Fatalf("expected 504 for timeout, got %d", StatusFor(perr))
	}
}

func TestSubmitAndAnalyzePlainProviderErrorIsWrapped(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{err: errors.New("dial tcp: connection refused")})
	_, err := f.svc.SubmitAndAnalyze(context.Background(), "hello")
	if KindOf(err) != KindProvider || !errors.Is(err, llm.ErrProvider) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestSubmitAndAnalyzeNilProviderUsesPlaceholder(t *testing.T) {
	quietLogs(t)
	f := newFixture(nil)
	_, err := f.svc.SubmitAndAnalyze(context.Background(), "hello")
	if KindOf(err) != KindProvider || !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected not configured provider error, got %v", err)
	}
}

func TestSubmitAndAnalyzeFencedResponse(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{text: "Sure! ```json\n{\"summary\":\"x\",\"sentiment\":\"neutral\",\"tags\":[]}\n```"})

	res, err := f.svc.SubmitAndAnalyze(context.Background(), "anything")
	if err != nil {
		t.Fatalf("SubmitAndAnalyze: %v", err)
	}
	if res.Summary != "x" || res.Sentiment != "neutral" || res.Tags == nil || len(res.Tags) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSubmitAndAnalyzeResponseFormatErrors(t *testing.T) {
	quietLogs(t)
	cases := map[string]string{
		"unknown sentiment": `{"summary":"x","sentiment":"mixed","tags":[]}`,
		"tags not a list":   `{"summary":"x","sentiment":"neutral","tags":"a,b"}`,
		"missing summary":   `{"sentiment":"neutral","tags":[]}`,
		"not json":          `I cannot analyze this.`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(&fakeProvider{text: text})
			f.svc.NewID = sequentialIDs()
			_, err := f.svc.SubmitAndAnalyze(context.Background(), "content")
			if KindOf(err) != KindResponseFormat || !errors.Is(err, llm.ErrResponseFormat) {
				t.Fatalf("expected response format error, got %v", err)
			}
			item, _ := f.items.GetByID(context.Background(), "id-1")
			if item.Processed() {
				t.Fatalf("item must not be updated on parse failure")
			}
			entry, _ := f.queue.GetByContentID(context.Background(), "id-1")
			if entry.Status != queueentries.StatusProcessing {
				t.Fatalf("expected processing, got %q", entry.Status)
			}
		})
	}
}

func TestSubmitAndAnalyzeMarksQueueFailedWhenEnabled(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{text: `{"summary":"x","sentiment":"bad","tags":[]}`})
	f.svc.NewID = sequentialIDs()
	f.svc.MarkQueueFailed = true

	if _, err := f.svc.SubmitAndAnalyze(context.Background(), "content"); err == nil {
		t.Fatalf("expected error")
	}
	entry, _ := f.queue.GetByContentID(context.Background(), "id-1")
	if entry.Status != queueentries.StatusFailed {
		t.Fatalf("expected failed queue entry, got %q", entry.Status)
	}
}

func TestSubmitAndAnalyzeIsNotIdempotent(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{text: launchResponse})
	first, err := f.svc.SubmitAndAnalyze(context.Background(), "same text")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.svc.SubmitAndAnalyze(context.Background(), "same text")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected independent ids")
	}
	if n := f.itemCount(t); n != 2 {
		t.Fatalf("expected 2 items, got %d", n)
	}
}

type failingItems struct {
	*contentitems.MemoryRepo
	createErr error
	updateErr error
}

func (r failingItems) Create(ctx context.Context, item contentitems.Item) (contentitems.Item, error) {
	if r.createErr != nil {
		return contentitems.Item{}, r.createErr
	}
	return r.MemoryRepo.Create(ctx, item)
}

func (r failingItems) UpdateAnalysis(ctx context.Context, id string, a contentitems.Analysis) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.MemoryRepo.UpdateAnalysis(ctx, id, a)
}

type failingQueue struct {
	*queueentries.MemoryRepo
	createErr error
	updateErr error
}

func (r failingQueue) Create(ctx context.Context, e queueentries.Entry) (queueentries.Entry, error) {
	if r.createErr != nil {
		return queueentries.Entry{}, r.createErr
	}
	return r.MemoryRepo.Create(ctx, e)
}

func (r failingQueue) UpdateStatus(ctx context.Context, contentID string, status queueentries.Status, at time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.MemoryRepo.UpdateStatus(ctx, contentID, status, at)
}

type failingMetrics struct {
	*processingmetrics.MemoryRepo
}

func (failingMetrics) Create(ctx context.Context, m processingmetrics.Metric) (processingmetrics.Metric, error) {
	return processingmetrics.Metric{}, errors.New("metrics table unavailable")
}

func TestSubmitAndAnalyzeCreateItemFailure(t *testing.T) {
	quietLogs(t)
	provider := &fakeProvider{text: launchResponse}
	f := newFixture(provider)
	f.svc.Items = failingItems{MemoryRepo: f.items, createErr: errors.New("db down")}

	_, err := f.svc.SubmitAndAnalyze(context.Background(), "hello")
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindPersistence || perr.Step != StepCreateItem {
		t.Fatalf("expected persistence error at create_item, got %v", err)
	}
	if len(provider.prompts) != 0 {
		t.Fatalf("provider must not be called after create failure")
	}
	counts, _ := f.queue.StatusCountsSince(context.Background(), epoch)
	if len(counts) != 0 {
		t.Fatalf("expected no queue entries, got %v", counts)
	}
}

func TestSubmitAndAnalyzeStoreAnalysisFailure(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{text: launchResponse})
	f.svc.NewID = sequentialIDs()
	f.svc.Items = failingItems{MemoryRepo: f.items, updateErr: errors.New("write timeout")}

	_, err := f.svc.SubmitAndAnalyze(context.Background(), "hello")
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindPersistence || perr.Step != StepStoreAnalysis {
		t.Fatalf("expected persistence error at store_analysis, got %v", err)
	}
	entry, _ := f.queue.GetByContentID(context.Background(), "id-1")
	if entry.Status != queueentries.StatusProcessing {
		t.Fatalf("queue entry must not advance, got %q", entry.Status)
	}
	list, _ := f.metrics.ListByContentID(context.Background(), "id-1")
	if len(list) != 0 {
		t.Fatalf("expected no metric, got %d", len(list))
	}
}

func TestSubmitAndAnalyzeAdvisoryFailuresDoNotFailRun(t *testing.T) {
	logs := quietLogs(t)
	f := newFixture(&fakeProvider{text: launchResponse})
	f.svc.Queue = failingQueue{MemoryRepo: f.queue, createErr: errors.New("queue insert failed"), updateErr: errors.New("queue update failed")}
	f.svc.Metrics = failingMetrics{MemoryRepo: f.metrics}

	res, err := f.svc.SubmitAndAnalyze(context.Background(), "The product launch was a huge success!")
	if err != nil {
		t.Fatalf("expected success despite advisory failures, got %v", err)
	}
	steps := make([]Step, 0, len(res.Advisories))
	for _, a := range res.Advisories {
		steps = append(steps, a.Step)
	}
	want := []Step{StepEnqueue, StepCompleteQueue, StepRecordMetric}
	if fmt.Sprint(steps) != fmt.Sprint(want) {
		t.Fatalf("expected advisories %v, got %v", want, steps)
	}
	item, _ := f.items.GetByID(context.Background(), res.ID)
	if !item.Processed() {
		t.Fatalf("expected analyzed item")
	}
	if !strings.Contains(logs.String(), `"msg":"pipeline.advisory_failed"`) || !strings.Contains(logs.String(), "metrics table unavailable") {
		t.Fatalf("expected advisory failure log, got %s", logs.String())
	}
}

type recordingPublisher struct {
	events []events.AnalysisCompleted
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.AnalysisCompleted) error {
	p.events = append(p.events, evt)
	return p.err
}

type brokenStore struct{}

func (brokenStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	return 0, errors.New("bucket missing")
}

func (brokenStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("bucket missing")
}

func TestSubmitAndAnalyzeArchivesAndPublishes(t *testing.T) {
	quietLogs(t)
	store := local.New(t.TempDir())
	pub := &recordingPublisher{}
	f := newFixture(&fakeProvider{text: launchResponse, model: "gpt-4o-mini"})
	f.svc.Archive = store
	f.svc.Events = pub
	f.svc.Now = func() time.Time { return epoch }
	ctx := WithRequestID(context.Background(), "req-1")

	res, err := f.svc.SubmitAndAnalyze(ctx, "hello")
	if err != nil {
		t.Fatalf("SubmitAndAnalyze: %v", err)
	}

	rc, err := store.Open(context.Background(), object.RawResponseKey(res.ID, epoch))
	if err != nil {
		t.Fatalf("open archived response: %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != launchResponse {
		t.Fatalf("unexpected archived text %q", raw)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.ContentID != res.ID || evt.Sentiment != "positive" || evt.ModelUsed != "gpt-4o-mini" || evt.RequestID != "req-1" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.ContentSHA256 != util.ContentHash("hello") {
		t.Fatalf("expected content hash on event, got %q", evt.ContentSHA256)
	}
}

func TestSubmitAndAnalyzeLogsContentHash(t *testing.T) {
	const content = "The product launch was a huge success!"
	hash := util.ContentHash(content)

	logs := quietLogs(t)
	f := newFixture(&fakeProvider{text: launchResponse})
	if _, err := f.svc.SubmitAndAnalyze(context.Background(), content); err != nil {
		t.Fatalf("SubmitAndAnalyze: %v", err)
	}
	if !strings.Contains(logs.String(), `"content_sha256":"`+hash+`"`) {
		t.Fatalf("expected content hash in completion log, got %s", logs.String())
	}
	if strings.Contains(logs.String(), content) {
		t.Fatalf("content text must not be logged")
	}

	logs = quietLogs(t)
	f = newFixture(&fakeProvider{err: errors.New("upstream unavailable")})
	if _, err := f.svc.SubmitAndAnalyze(context.Background(), content); err == nil {
		t.Fatalf("expected provider failure")
	}
	if !strings.Contains(logs.String(), `"msg":"pipeline.failed"`) || !strings.Contains(logs.String(), `"content_sha256":"`+hash+`"`) {
		t.Fatalf("expected content hash in failure log, got %s", logs.String())
	}
}

func TestSubmitAndAnalyzeArchiveAndEventFailuresAreAdvisory(t *testing.T) {
	quietLogs(t)
	f := newFixture(&fakeProvider{text: launchResponse})
	f.svc.Archive = brokenStore{}
	f.svc.Events = &recordingPublisher{err: errors.New("sqs throttled")}

	res, err := f.svc.SubmitAndAnalyze(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SubmitAndAnalyze: %v", err)
	}
	if len(res.Advisories) != 2 || res.Advisories[0].Step != StepArchive || res.Advisories[1].Step != StepPublishEvent {
		t.Fatalf("unexpected advisories: %+v", res.Advisories)
	}
}

func TestStepPolicies(t *testing.T) {
	for _, step := range []Step{StepValidate, StepCreateItem, StepAnalyze, StepParse, StepStoreAnalysis, Step("unknown")} {
		if PolicyFor(step) != Critical {
			t.Fatalf("expected %s to be critical", step)
		}
	}
	for _, step := range []Step{StepEnqueue, StepArchive, StepCompleteQueue, StepRecordMetric, StepPublishEvent, StepMarkQueueFailed} {
		if PolicyFor(step) != Advisory {
			t.Fatalf("expected %s to be advisory", step)
		}
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}
