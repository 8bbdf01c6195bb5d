// Package metrics keeps in-memory task records for one batch run and
// aggregates them into the end-of-run tally.
package metrics

import "time"

// TaskRecord is one timed unit of work for one job.
type TaskRecord struct {
	// ID is unique per record, typically "<run>-<job>-<stage>".
	ID string `json:"id"`

	// JobIndex is the job's position in the expanded list.
	JobIndex int `json:"job_index"`

	// Stage names the step: generate or publish.
	Stage string `json:"stage"`

	// Status is success or error.
	Status string `json:"status"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	ErrorMsg string `json:"error_msg,omitempty"`
}

// StageMetrics aggregates the records of one stage.
type StageMetrics struct {
	Count       int64         `json:"count"`
	Errors      int64         `json:"errors"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

// TaskMetrics aggregates every recorded task.
type TaskMetrics struct {
	TotalProcessed int64                    `json:"total_processed"`
	TotalSuccess   int64                    `json:"total_success"`
	TotalErrors    int64                    `json:"total_errors"`
	ByStage        map[string]*StageMetrics `json:"by_stage"`
}

// Tally is the end-of-run summary printed to the console.
type Tally struct {
	RunID         string        `json:"run_id"`
	Minted        int           `json:"minted"`
	Completed     int           `json:"completed"`
	Failed        int           `json:"failed"`
	Published     int           `json:"published"`
	PublishErrors int           `json:"publish_errors"`
	PeakInFlight  int           `json:"peak_in_flight"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Status values for TaskRecord.
const (
	TaskStatusSuccess = "success"
	TaskStatusError   = "error"
)

// Stage values for TaskRecord.
const (
	StageGenerate = "generate"
	StagePublish  = "publish"
)
