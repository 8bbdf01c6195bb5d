package dispatch

import (
	"time"

	"ideobatch/ideogram"
	"ideobatch/pipeline"
)

// Outcome is the result of one job.
type Outcome struct {
	Job      pipeline.Job
	Response *ideogram.Response

	// Image is the first image of Response; zero when Err is set.
	Image ideogram.Image

	// Err is the generation error. A nil Err means the job completed.
	Err error

	// Artifacts and PublishErr come from the publisher, if any.
	Artifacts  []string
	PublishErr error

	Started  time.Time
	Finished time.Time
}

// OK reports whether the job completed.
func (o Outcome) OK() bool { return o.Err == nil }

// Duration is the wall time spent on the job.
func (o Outcome) Duration() time.Duration { return o.Finished.Sub(o.Started) }

// Failure pairs a failed job with its error.
type Failure struct {
	Job pipeline.Job
	Err error
}

// Report is the aggregate result of Run. Completed + Failed equals the
// number of jobs dispatched.
type Report struct {
	Completed     int
	Failed        int
	PublishErrors int
	Failures      []Failure

	// Outcomes is in job order, one per job.
	Outcomes []Outcome

	Elapsed time.Duration
}

// Total is the number of dispatched jobs.
func (r Report) Total() int { return r.Completed + r.Failed }

// newReport compacts the per-job slots after every goroutine has returned.
func newReport(outcomes []Outcome, completed, failed int, elapsed time.Duration) Report {
	report := Report{
		Completed: completed,
		Failed:    failed,
		Outcomes:  outcomes,
		Elapsed:   elapsed,
	}
	for _, out := range outcomes {
		if out.Err != nil {
			report.Failures = append(report.Failures, Failure{Job: out.Job, Err: out.Err})
		}
		if out.PublishErr != nil {
			report.PublishErrors++
		}
	}
	return report
}
