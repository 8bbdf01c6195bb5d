package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ideobatch/ideogram"
	"ideobatch/metrics"
	"ideobatch/pipeline"
)

// stubGenerator tracks how many calls overlap and lets each test decide the
// per-prompt result.
type stubGenerator struct {
	delay    time.Duration
	respond  func(req ideogram.Request) (*ideogram.Response, error)
	inFlight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64
}

func (g *stubGenerator) Generate(ctx context.Context, req ideogram.Request) (*ideogram.Response, error) {
	g.calls.Add(1)
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.respond != nil {
		return g.respond(req)
	}
	return okResponse(req.Prompt), nil
}

func okResponse(prompt string) *ideogram.Response {
	return &ideogram.Response{
		Created: "2024-01-01T00:00:00Z",
		Data: []ideogram.Image{{
			URL:         "https://example.invalid/img.png",
			Prompt:      prompt,
			Resolution:  "1024x1024",
			IsImageSafe: true,
			Seed:        42,
			StyleType:   "GENERAL",
		}},
	}
}

func makeJobs(n int) []pipeline.Job {
	jobs := make([]pipeline.Job, n)
	for i := range jobs {
		jobs[i] = pipeline.Job{
			Index:  i,
			Prompt: pipeline.PromptText{Visible: fmt.Sprintf("prompt %d", i), Steering: "steer"},
			Params: ideogram.DefaultParams(),
		}
	}
	return jobs
}

type recordingPublisher struct {
	mu    sync.Mutex
	jobs  []int
	fail  func(job pipeline.Job) error
	panic bool
}

func (p *recordingPublisher) Publish(ctx context.Context, job pipeline.Job, resp *ideogram.Response) ([]string, error) {
	if p.panic {
		panic("disk on fire")
	}
	p.mu.Lock()
	p.jobs = append(p.jobs, job.Index)
	p.mu.Unlock()
	if p.fail != nil {
		if err := p.fail(job); err != nil {
			return nil, err
		}
	}
	return []string{fmt.Sprintf("out/%d.png", job.Index)}, nil
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (o *countingObserver) Observe(ctx context.Context, out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
}

func TestNew_Defaults(t *testing.T) {
	d := New(&stubGenerator{})
	if d.MaxConcurrency() != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency() = %d, want %d", d.MaxConcurrency(), DefaultMaxConcurrency)
	}

	d = New(&stubGenerator{}, WithMaxConcurrency(0))
	if d.MaxConcurrency() != DefaultMaxConcurrency {
		t.Errorf("zero concurrency should be ignored, got %d", d.MaxConcurrency())
	}
}

func TestRun_RespectsConcurrencyBound(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		jobs  int
	}{
		{"serial", 1, 6},
		{"default", DefaultMaxConcurrency, 20},
		{"more slots than jobs", 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{delay: 10 * time.Millisecond}
			d := New(gen, WithMaxConcurrency(tt.limit))

			report := d.Run(context.Background(), makeJobs(tt.jobs))

			if report.Completed != tt.jobs || report.Failed != 0 {
				t.Errorf("completed=%d failed=%d, want %d/0", report.Completed, report.Failed, tt.jobs)
			}
			if peak := gen.peak.Load(); peak > int64(tt.limit) {
				t.Errorf("peak in flight %d exceeds limit %d", peak, tt.limit)
			}
			if calls := gen.calls.Load(); calls != int64(tt.jobs) {
				t.Errorf("generator called %d times, want %d", calls, tt.jobs)
			}
		})
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	boom := errors.New("service unavailable")
	gen := &stubGenerator{respond: func(req ideogram.Request) (*ideogram.Response, error) {
		if strings.HasPrefix(req.Prompt, "prompt 2") {
			return nil, boom
		}
		return okResponse(req.Prompt), nil
	}}
	pub := &recordingPublisher{}
	d := New(gen, WithPublisher(pub))

	report := d.Run(context.Background(), makeJobs(5))

	if report.Completed != 4 || report.Failed != 1 {
		t.Fatalf("completed=%d failed=%d, want 4/1", report.Completed, report.Failed)
	}
	if report.Total() != 5 {
		t.Errorf("Total() = %d, want 5", report.Total())
	}
	if len(report.Failures) != 1 || report.Failures[0].Job.Index != 2 {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if !errors.Is(report.Failures[0].Err, boom) {
		t.Errorf("failure error = %v, want %v", report.Failures[0].Err, boom)
	}
	if len(pub.jobs) != 4 {
		t.Errorf("publisher saw %d jobs, want 4", len(pub.jobs))
	}

	for i, out := range report.Outcomes {
		if out.Job.Index != i {
			t.Errorf("Outcomes[%d] holds job %d", i, out.Job.Index)
		}
	}
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	gen := &stubGenerator{respond: func(req ideogram.Request) (*ideogram.Response, error) {
		if strings.HasPrefix(req.Prompt, "prompt 1") {
			panic("unexpected nil")
		}
		return okResponse(req.Prompt), nil
	}}
	d := New(gen)

	report := d.Run(context.Background(), makeJobs(3))

	if report.Completed != 2 || report.Failed != 1 {
		t.Fatalf("completed=%d failed=%d, want 2/1", report.Completed, report.Failed)
	}
	if !strings.Contains(report.Outcomes[1].Err.Error(), "panicked") {
		t.Errorf("expected panic error, got %v", report.Outcomes[1].Err)
	}
}

func TestRun_EmptyResponseFails(t *testing.T) {
	gen := &stubGenerator{respond: func(req ideogram.Request) (*ideogram.Response, error) {
		return &ideogram.Response{Created: "now"}, nil
	}}
	pub := &recordingPublisher{}
	d := New(gen, WithPublisher(pub))

	report := d.Run(context.Background(), makeJobs(2))

	if report.Failed != 2 {
		t.Fatalf("Failed = %d, want 2", report.Failed)
	}
	for _, f := range report.Failures {
		if !errors.Is(f.Err, ErrNoImage) {
			t.Errorf("expected ErrNoImage, got %v", f.Err)
		}
	}
	if len(pub.jobs) != 0 {
		t.Errorf("publisher should not run for empty responses")
	}
}

func TestRun_PublishErrorDoesNotFailJob(t *testing.T) {
	tests := []struct {
		name string
		pub  *recordingPublisher
	}{
		{"error", &recordingPublisher{fail: func(pipeline.Job) error { return errors.New("disk full") }}},
		{"panic", &recordingPublisher{panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&stubGenerator{}, WithPublisher(tt.pub))

			report := d.Run(context.Background(), makeJobs(3))

			if report.Completed != 3 || report.Failed != 0 {
				t.Errorf("completed=%d failed=%d, want 3/0", report.Completed, report.Failed)
			}
			if report.PublishErrors != 3 {
				t.Errorf("PublishErrors = %d, want 3", report.PublishErrors)
			}
			for _, out := range report.Outcomes {
				if !out.OK() || out.PublishErr == nil {
					t.Errorf("job %d: OK=%v PublishErr=%v", out.Job.Index, out.OK(), out.PublishErr)
				}
			}
		})
	}
}

func TestRun_CancelledContextFailsWaitingJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &stubGenerator{respond: func(req ideogram.Request) (*ideogram.Response, error) {
		cancel()
		return okResponse(req.Prompt), nil
	}}
	d := New(gen, WithMaxConcurrency(1))

	report := d.Run(ctx, makeJobs(4))

	if report.Total() != 4 {
		t.Fatalf("Total() = %d, want 4", report.Total())
	}
	if report.Completed < 1 {
		t.Errorf("the first job should complete, got %d", report.Completed)
	}
	if report.Failed == 0 {
		t.Errorf("jobs waiting for a slot after cancellation should fail")
	}
	for _, f := range report.Failures {
		if !errors.Is(f.Err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", f.Err)
		}
	}
}

func TestRun_RecorderAndObserver(t *testing.T) {
	store := metrics.NewStore(metrics.DefaultStoreConfig())
	obs := &countingObserver{}
	d := New(&stubGenerator{delay: 5 * time.Millisecond},
		WithMaxConcurrency(2),
		WithPublisher(&recordingPublisher{}),
		WithRecorder(store),
		WithObserver(obs),
		WithObserver(nil),
		WithRunID("test"))

	report := d.Run(context.Background(), makeJobs(6))

	if len(obs.outcomes) != 6 {
		t.Errorf("observer saw %d outcomes, want 6", len(obs.outcomes))
	}

	m := store.GetTaskMetrics()
	if m.ByStage[metrics.StageGenerate] == nil || m.ByStage[metrics.StageGenerate].Count != 6 {
		t.Errorf("expected 6 generate records, got %+v", m.ByStage[metrics.StageGenerate])
	}
	if m.ByStage[metrics.StagePublish] == nil || m.ByStage[metrics.StagePublish].Count != 6 {
		t.Errorf("expected 6 publish records, got %+v", m.ByStage[metrics.StagePublish])
	}
	if peak := store.PeakInFlight(); peak < 1 || peak > 2 {
		t.Errorf("PeakInFlight() = %d, want 1..2", peak)
	}

	recent := store.GetRecentTasks(1)
	if len(recent) != 1 || !strings.HasPrefix(recent[0].ID, "test-") {
		t.Errorf("unexpected task record: %+v", recent)
	}
	if report.Outcomes[0].Artifacts[0] != "out/0.png" {
		t.Errorf("artifacts not carried on outcome: %v", report.Outcomes[0].Artifacts)
	}
}
