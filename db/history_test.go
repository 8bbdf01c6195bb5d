package db

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"ideobatch/logging"
)

func newTestRepository(t *testing.T) (*Database, *HistoryRepository) {
	t.Helper()
	d, err := NewDatabase(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, NewHistoryRepository(d.DB())
}

func sampleRecord(run string, index int, status string) GenerationRecord {
	return GenerationRecord{
		RunID:         run,
		JobIndex:      index,
		SourcePrompt:  "a red fox",
		VisiblePrompt: "a red fox",
		Model:         "V_2",
		Size:          "ASPECT_1_1",
		Seed:          42,
		Status:        status,
		ImageURL:      "https://example.test/a.png",
		Artifacts:     []string{"images/a.png", "images/a.json"},
		Duration:      1500 * time.Millisecond,
		CreatedAt:     time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
	}
}

// TestGenerationRecord_Validate covers the required fields.
func TestGenerationRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		record  GenerationRecord
		wantErr bool
	}{
		{"valid success", sampleRecord("run", 0, StatusSuccess), false},
		{"valid error", sampleRecord("run", 0, StatusError), false},
		{"missing run", sampleRecord(" ", 0, StatusSuccess), true},
		{"bad status", sampleRecord("run", 0, "pending"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("error should wrap ErrInvalidRecord, got %v", err)
			}
		})
	}
}

// TestHistoryRepository_InsertAndList verifies a record round-trips through
// the table.
func TestHistoryRepository_InsertAndList(t *testing.T) {
	_, repo := newTestRepository(t)
	ctx := context.Background()

	want := sampleRecord("run-1", 1, StatusSuccess)
	id, err := repo.InsertGeneration(ctx, want)
	if err != nil {
		t.Fatalf("InsertGeneration() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("id = %d, want positive", id)
	}

	failed := sampleRecord("run-1", 0, StatusError)
	failed.ErrorMessage = "ideogram: request failed with status 500"
	failed.Artifacts = nil
	if _, err := repo.InsertGeneration(ctx, failed); err != nil {
		t.Fatalf("InsertGeneration() error = %v", err)
	}
	if _, err := repo.InsertGeneration(ctx, sampleRecord("run-2", 0, StatusSuccess)); err != nil {
		t.Fatalf("InsertGeneration() error = %v", err)
	}

	got, err := repo.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByRun() returned %d records, want 2", len(got))
	}
	if got[0].JobIndex != 0 || got[0].ErrorMessage == "" || got[0].Artifacts != nil {
		t.Errorf("first record = %+v, want the failed job 0", got[0])
	}

	want.ID = id
	if !reflect.DeepEqual(got[1], want) {
		t.Errorf("record =\n%+v\nwant\n%+v", got[1], want)
	}
}

// TestHistoryRepository_InsertInvalid verifies invalid records never hit the table.
func TestHistoryRepository_InsertInvalid(t *testing.T) {
	_, repo := newTestRepository(t)
	if _, err := repo.InsertGeneration(context.Background(), GenerationRecord{}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
}

// TestHistoryRepository_CountByStatus verifies per-status tallies.
func TestHistoryRepository_CountByStatus(t *testing.T) {
	_, repo := newTestRepository(t)
	ctx := context.Background()

	statuses := []string{StatusSuccess, StatusSuccess, StatusError, StatusSuccess}
	for i, s := range statuses {
		if _, err := repo.InsertGeneration(ctx, sampleRecord("run", i, s)); err != nil {
			t.Fatalf("InsertGeneration() error = %v", err)
		}
	}

	counts, err := repo.CountByStatus(ctx, "run")
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	want := map[string]int{StatusSuccess: 3, StatusError: 1}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("CountByStatus() = %v, want %v", counts, want)
	}
}

// TestHistoryRepository_DeleteOlderThan verifies retention pruning.
func TestHistoryRepository_DeleteOlderThan(t *testing.T) {
	_, repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	ages := []time.Duration{48 * time.Hour, 72 * time.Hour, time.Hour}
	for i, age := range ages {
		r := sampleRecord("run", i, StatusSuccess)
		r.CreatedAt = now.Add(-age)
		if _, err := repo.InsertGeneration(ctx, r); err != nil {
			t.Fatalf("InsertGeneration() error = %v", err)
		}
	}

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	left, _ := repo.ListByRun(ctx, "run")
	if len(left) != 1 || left[0].JobIndex != 2 {
		t.Errorf("remaining = %+v, want only job 2", left)
	}
}

// TestHistoryWriter_DrainsOnClose verifies queued records are inserted by Close.
func TestHistoryWriter_DrainsOnClose(t *testing.T) {
	_, repo := newTestRepository(t)

	w := NewHistoryWriter(repo, logging.NewNop())
	for i := 0; i < 10; i++ {
		w.Record(sampleRecord("async", i, StatusSuccess))
	}
	w.Record(GenerationRecord{})
	w.Close()

	got, err := repo.ListByRun(context.Background(), "async")
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if len(got) != 10 {
		t.Errorf("stored %d records, want 10", len(got))
	}
	if w.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1 for the invalid record", w.Failed())
	}
}
