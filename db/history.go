package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Generation statuses stored in generation_history.status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrInvalidRecord is returned when a record misses its run ID or status.
var ErrInvalidRecord = errors.New("db: invalid generation record")

// GenerationRecord is one row of generation_history.
type GenerationRecord struct {
	ID            int64
	RunID         string
	JobIndex      int
	SourcePrompt  string
	VisiblePrompt string
	Model         string
	Size          string
	Seed          int
	Status        string
	ErrorMessage  string
	ImageURL      string
	Artifacts     []string
	PublishError  string
	Duration      time.Duration
	CreatedAt     time.Time
}

// Validate checks the fields the schema requires.
func (r GenerationRecord) Validate() error {
	if strings.TrimSpace(r.RunID) == "" {
		return fmt.Errorf("%w: run ID is required", ErrInvalidRecord)
	}
	if r.Status != StatusSuccess && r.Status != StatusError {
		return fmt.Errorf("%w: status %q", ErrInvalidRecord, r.Status)
	}
	return nil
}

// artifactSeparator joins artifact locations in one column. Locations are
// paths or URLs and never contain a newline.
const artifactSeparator = "\n"

// HistoryRepository reads and writes generation_history.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository wraps an open connection.
func NewHistoryRepository(conn *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: conn}
}

// InsertGeneration stores r and returns the new row ID. A zero CreatedAt is
// replaced with the current time.
func (h *HistoryRepository) InsertGeneration(ctx context.Context, r GenerationRecord) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	res, err := h.db.ExecContext(ctx, `
		INSERT INTO generation_history (
			run_id, job_index, source_prompt, visible_prompt, model, size, seed,
			status, error_message, image_url, artifacts, publish_error,
			duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.JobIndex, r.SourcePrompt, r.VisiblePrompt, r.Model, r.Size, r.Seed,
		r.Status, r.ErrorMessage, r.ImageURL, strings.Join(r.Artifacts, artifactSeparator), r.PublishError,
		r.Duration.Milliseconds(), r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert generation: %w", err)
	}
	return res.LastInsertId()
}

// ListByRun returns every record of runID ordered by job index.
func (h *HistoryRepository) ListByRun(ctx context.Context, runID string) ([]GenerationRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, run_id, job_index, source_prompt, visible_prompt, model, size, seed,
		       status, error_message, image_url, artifacts, publish_error,
		       duration_ms, created_at
		FROM generation_history
		WHERE run_id = ?
		ORDER BY job_index, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var records []GenerationRecord
	for rows.Next() {
		var (
			r          GenerationRecord
			artifacts  string
			durationMS int64
			createdMS  int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.JobIndex, &r.SourcePrompt, &r.VisiblePrompt,
			&r.Model, &r.Size, &r.Seed, &r.Status, &r.ErrorMessage, &r.ImageURL,
			&artifacts, &r.PublishError, &durationMS, &createdMS); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		if artifacts != "" {
			r.Artifacts = strings.Split(artifacts, artifactSeparator)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt = time.UnixMilli(createdMS).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountByStatus returns the number of rows of runID per status.
func (h *HistoryRepository) CountByStatus(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM generation_history
		WHERE run_id = ?
		GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count generations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteOlderThan removes rows created before cutoff and returns how many
// were deleted.
func (h *HistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx,
		`DELETE FROM generation_history WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old generations: %w", err)
	}
	return res.RowsAffected()
}
