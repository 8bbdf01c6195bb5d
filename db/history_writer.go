package db

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ideobatch/logging"
)

// HistoryWriter queues generation records and inserts them on a background
// goroutine so job completion never waits on SQLite.
type HistoryWriter struct {
	repo    *HistoryRepository
	writer  *AsyncWriter[GenerationRecord]
	logger  *logging.Logger
	timeout time.Duration
}

// NewHistoryWriter starts the background inserter. A nil logger discards
// output.
func NewHistoryWriter(repo *HistoryRepository, logger *logging.Logger) *HistoryWriter {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &HistoryWriter{
		repo:    repo,
		logger:  logger.Named("history"),
		timeout: time.Second,
	}
	h.writer = NewAsyncWriter(h.insert)
	h.writer.Start()
	return h
}

func (h *HistoryWriter) insert(op WriteOperation[GenerationRecord]) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.repo.InsertGeneration(ctx, op.Data); err != nil {
		h.logger.Warn("failed to record generation",
			zap.String("run_id", op.Data.RunID),
			zap.Int("index", op.Data.JobIndex),
			zap.Error(err))
		return err
	}
	return nil
}

// Record queues r. When the buffer stays full for a second the record is
// dropped with a warning.
func (h *HistoryWriter) Record(r GenerationRecord) {
	if !h.writer.WriteWithTimeout(r, h.timeout) {
		h.logger.Warn("history buffer full, dropping record",
			zap.String("run_id", r.RunID),
			zap.Int("index", r.JobIndex))
	}
}

// Failed returns how many inserts failed so far.
func (h *HistoryWriter) Failed() int {
	return h.writer.Failed()
}

// Close drains queued records, waiting at most DefaultDrainTimeout.
func (h *HistoryWriter) Close() {
	if !h.writer.Close() {
		h.logger.Warn("history drain timed out",
			zap.Int("pending", h.writer.Pending()))
	}
}
