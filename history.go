package main

import (
	"context"

	"ideobatch/db"
	"ideobatch/dispatch"
)

// historyRecorder is the part of db.HistoryWriter the observer needs.
type historyRecorder interface {
	Record(r db.GenerationRecord)
}

// historyObserver turns dispatch outcomes into history rows.
type historyObserver struct {
	runID  string
	writer historyRecorder
}

func newHistoryObserver(runID string, writer historyRecorder) *historyObserver {
	return &historyObserver{runID: runID, writer: writer}
}

// Observe queues one row per outcome. It never blocks on the database.
func (h *historyObserver) Observe(_ context.Context, out dispatch.Outcome) {
	h.writer.Record(generationRecord(h.runID, out))
}

func generationRecord(runID string, out dispatch.Outcome) db.GenerationRecord {
	job := out.Job
	r := db.GenerationRecord{
		RunID:         runID,
		JobIndex:      job.Index,
		SourcePrompt:  job.Source,
		VisiblePrompt: job.Prompt.Visible,
		Model:         string(job.Params.Model),
		Size:          job.Params.Size.String(),
		Status:        db.StatusSuccess,
		Artifacts:     out.Artifacts,
		Duration:      out.Duration(),
		CreatedAt:     out.Finished,
	}
	if job.Params.Seed != nil {
		r.Seed = *job.Params.Seed
	}
	if out.Err != nil {
		r.Status = db.StatusError
		r.ErrorMessage = out.Err.Error()
		return r
	}
	r.ImageURL = out.Image.URL
	r.Seed = out.Image.Seed
	if out.PublishErr != nil {
		r.PublishError = out.PublishErr.Error()
	}
	return r
}
