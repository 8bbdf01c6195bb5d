package metrics

// Recorder receives task records and in-flight notifications from the
// dispatcher. Implementations must be safe for concurrent use.
type Recorder interface {
	// RecordTask stores one finished task.
	RecordTask(task TaskRecord)

	// Enter and Leave bracket one in-flight generation call.
	Enter()
	Leave()
}

// Collector is a Recorder that can also be read back.
type Collector interface {
	Recorder

	GetTaskMetrics() TaskMetrics
	GetRecentTasks(limit int) []TaskRecord
	PeakInFlight() int
}
