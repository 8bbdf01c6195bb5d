package core

// Exit codes for the batch runner.
const (
	// ExitCodeSuccess indicates every dispatched job completed (exit code 0)
	ExitCodeSuccess = 0

	// ExitCodeError indicates a startup or configuration error (exit code 1)
	ExitCodeError = 1

	// ExitCodePartialFailure indicates the batch ran but some jobs failed (exit code 2)
	ExitCodePartialFailure = 2
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodePartialFailure:
		return "partial failure"
	default:
		return "unknown"
	}
}

// ExitCodeForRun picks the exit code for a finished batch.
func ExitCodeForRun(failed int) int {
	if failed > 0 {
		return ExitCodePartialFailure
	}
	return ExitCodeSuccess
}
