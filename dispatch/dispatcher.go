// Package dispatch runs generation jobs against the image service with a
// bounded number of calls in flight.
//
// Every job is its own goroutine. A failing or panicking job is recorded
// in the Report and never affects its siblings. Nothing is retried.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"ideobatch/ideogram"
	"ideobatch/logging"
	"ideobatch/metrics"
	"ideobatch/pipeline"
)

// DefaultMaxConcurrency keeps a default run inside the service rate limit.
const DefaultMaxConcurrency = 5

// ErrNoImage is recorded when the service answers 2xx without any image.
var ErrNoImage = errors.New("dispatch: response contained no image")

// Generator is the image service. *ideogram.Client implements it.
type Generator interface {
	Generate(ctx context.Context, req ideogram.Request) (*ideogram.Response, error)
}

// Publisher persists a successful generation and returns the locations it
// wrote. Publish errors are logged on the outcome; they never turn a
// completed job into a failure.
type Publisher interface {
	Publish(ctx context.Context, job pipeline.Job, resp *ideogram.Response) ([]string, error)
}

// Observer is told about every finished job, in completion order.
// Implementations must be safe for concurrent use.
type Observer interface {
	Observe(ctx context.Context, outcome Outcome)
}

// Dispatcher issues jobs to a Generator.
type Dispatcher struct {
	gen            Generator
	maxConcurrency int
	publisher      Publisher
	recorder       metrics.Recorder
	observers      []Observer
	logger         *logging.Logger
	runID          string
	now            func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxConcurrency bounds calls in flight. Values below 1 are ignored.
func WithMaxConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.maxConcurrency = n
		}
	}
}

// WithPublisher runs p after every successful generation.
func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithRecorder sends per-stage task records to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRunID tags task record IDs with the run identifier.
func WithRunID(id string) Option {
	return func(d *Dispatcher) { d.runID = id }
}

// New creates a Dispatcher over gen.
//
// Example:
//
//	d := dispatch.New(client,
//	    dispatch.WithMaxConcurrency(settings.MaxConcurrent),
//	    dispatch.WithPublisher(publisher))
//	report := d.Run(ctx, jobs)
func New(gen Generator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gen:            gen,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         logging.NewNop(),
		runID:          "run",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxConcurrency returns the semaphore size.
func (d *Dispatcher) MaxConcurrency() int { return d.maxConcurrency }

// Run dispatches every job and blocks until all have finished.
//
// Permits are acquired in job order, so submission follows the job list;
// completion order is whatever the service makes it. Each goroutine writes
// only its own slot of the outcome slice. The dispatcher never cancels ctx
// itself; if the caller does, jobs still waiting for a permit fail with the
// context error.
func (d *Dispatcher) Run(ctx context.Context, jobs []pipeline.Job) Report {
	start := d.now()
	sem := semaphore.NewWeighted(int64(d.maxConcurrency))
	outcomes := make([]Outcome, len(jobs))

	var completed, failed atomic.Int64
	var wg sync.WaitGroup

	d.logger.Info("dispatch started",
		zap.Int("jobs", len(jobs)),
		zap.Int("max_concurrency", d.maxConcurrency))

	for i := range jobs {
		job := jobs[i]

		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = Outcome{Job: job, Err: fmt.Errorf("dispatch: waiting for slot: %w", err), Started: d.now(), Finished: d.now()}
			failed.Add(1)
			d.finish(ctx, outcomes[i])
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			out := d.runJob(ctx, job)
			if out.Err != nil {
				failed.Add(1)
			} else {
				completed.Add(1)
			}
			outcomes[i] = out
			d.finish(ctx, out)
		}(i)
	}

	wg.Wait()

	report := newReport(outcomes, int(completed.Load()), int(failed.Load()), d.now().Sub(start))
	d.logger.Info("dispatch finished",
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
		zap.Int("publish_errors", report.PublishErrors),
		zap.Duration("elapsed", report.Elapsed))
	return report
}

// runJob calls the service and, on success, the publisher. A panic
// anywhere in the call becomes the job's error.
func (d *Dispatcher) runJob(ctx context.Context, job pipeline.Job) (out Outcome) {
	out = Outcome{Job: job, Started: d.now()}
	logger := d.logger.With(zap.Int("job", job.Index))

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("dispatch: job %d panicked: %v", job.Index, r)
			logger.Error("job panicked", zap.Any("panic", r))
		}
		out.Finished = d.now()
	}()

	out.Response, out.Err = d.generate(ctx, job)
	if out.Err != nil {
		logger.Warn("generation failed", zap.Error(out.Err))
		return out
	}

	img, ok := out.Response.First()
	if !ok {
		out.Err = ErrNoImage
		logger.Warn("generation returned no image")
		return out
	}
	out.Image = img
	logger.Info("image generated", zap.Int("seed", img.Seed), zap.Bool("safe", img.IsImageSafe))

	if d.publisher != nil {
		out.Artifacts, out.PublishErr = d.publish(ctx, job, out.Response)
		if out.PublishErr != nil {
			logger.Warn("publishing failed", zap.Error(out.PublishErr))
		}
	}
	return out
}

func (d *Dispatcher) generate(ctx context.Context, job pipeline.Job) (*ideogram.Response, error) {
	if d.recorder != nil {
		d.recorder.Enter()
		defer d.recorder.Leave()
	}

	started := d.now()
	resp, err := d.gen.Generate(ctx, job.Request())
	d.record(job, metrics.StageGenerate, started, err)
	return resp, err
}

// publish isolates publisher panics so they surface as publish errors.
func (d *Dispatcher) publish(ctx context.Context, job pipeline.Job, resp *ideogram.Response) (paths []string, err error) {
	started := d.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: publisher panicked: %v", r)
		}
		d.record(job, metrics.StagePublish, started, err)
	}()
	return d.publisher.Publish(ctx, job, resp)
}

func (d *Dispatcher) record(job pipeline.Job, stage string, started time.Time, err error) {
	if d.recorder == nil {
		return
	}
	end := d.now()
	task := metrics.TaskRecord{
		ID:        fmt.Sprintf("%s-%d-%s", d.runID, job.Index, stage),
		JobIndex:  job.Index,
		Stage:     stage,
		Status:    metrics.TaskStatusSuccess,
		StartTime: started,
		EndTime:   end,
		Duration:  end.Sub(started),
	}
	if err != nil {
		task.Status = metrics.TaskStatusError
		task.ErrorMsg = err.Error()
	}
	d.recorder.RecordTask(task)
}

func (d *Dispatcher) finish(ctx context.Context, out Outcome) {
	for _, o := range d.observers {
		o.Observe(ctx, out)
	}
}
