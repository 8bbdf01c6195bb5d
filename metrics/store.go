package metrics

import (
	"sync"
	"time"
)

// Store is an in-memory Collector. It keeps the most recent task records
// in a ring buffer and running aggregates for every record ever seen.
//
// Usage:
//
//	store := metrics.NewStore(metrics.DefaultStoreConfig())
//	store.RecordTask(task)
//	summary := store.GetTaskMetrics()
type Store struct {
	mu sync.RWMutex

	// ring buffer of recent records
	history []TaskRecord
	head    int
	size    int

	totalTasks   int64
	totalSuccess int64
	totalErrors  int64
	byStage      map[string]*stageStats

	inFlight int
	peak     int
}

type stageStats struct {
	count         int64
	errors        int64
	totalDuration time.Duration
	maxDuration   time.Duration
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// HistoryCapacity is the number of records retained for GetRecentTasks.
	HistoryCapacity int
}

// DefaultStoreConfig keeps the last 256 records, enough for a default run
// of 50 jobs with both stages.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{HistoryCapacity: 256}
}

// NewStore creates an empty Store.
func NewStore(config StoreConfig) *Store {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = DefaultStoreConfig().HistoryCapacity
	}
	return &Store{
		history: make([]TaskRecord, capacity),
		byStage: make(map[string]*stageStats),
	}
}

// RecordTask stores a finished task.
func (s *Store) RecordTask(task TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = task
	s.head = (s.head + 1) % len(s.history)
	if s.size < len(s.history) {
		s.size++
	}

	s.totalTasks++
	switch task.Status {
	case TaskStatusSuccess:
		s.totalSuccess++
	case TaskStatusError:
		s.totalErrors++
	}

	stats, ok := s.byStage[task.Stage]
	if !ok {
		stats = &stageStats{}
		s.byStage[task.Stage] = stats
	}
	stats.count++
	if task.Status == TaskStatusError {
		stats.errors++
	}
	stats.totalDuration += task.Duration
	if task.Duration > stats.maxDuration {
		stats.maxDuration = task.Duration
	}
}

// Enter marks one more call in flight and updates the peak.
func (s *Store) Enter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
}

// Leave marks one call finished.
func (s *Store) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		s.inFlight--
	}
}

// PeakInFlight returns the highest number of concurrent calls observed.
func (s *Store) PeakInFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peak
}

// GetTaskMetrics returns the aggregates.
func (s *Store) GetTaskMetrics() TaskMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := TaskMetrics{
		TotalProcessed: s.totalTasks,
		TotalSuccess:   s.totalSuccess,
		TotalErrors:    s.totalErrors,
		ByStage:        make(map[string]*StageMetrics, len(s.byStage)),
	}

	for stage, stats := range s.byStage {
		sm := &StageMetrics{
			Count:       stats.count,
			Errors:      stats.errors,
			MaxDuration: stats.maxDuration,
		}
		if stats.count > 0 {
			sm.SuccessRate = float64(stats.count-stats.errors) / float64(stats.count) * 100
			sm.AvgDuration = stats.totalDuration / time.Duration(stats.count)
		}
		m.ByStage[stage] = sm
	}
	return m
}

// GetRecentTasks returns up to limit records, oldest first.
func (s *Store) GetRecentTasks(limit int) []TaskRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []TaskRecord{}
	}
	if limit > s.size {
		limit = s.size
	}

	capacity := len(s.history)
	result := make([]TaskRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - limit + i + capacity) % capacity
		result[i] = s.history[idx]
	}
	return result
}

var _ Collector = (*Store)(nil)
