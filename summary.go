package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"ideobatch/dispatch"
	"ideobatch/metrics"
)

// buildTally folds the dispatch report and the in-flight peak into the
// end-of-run summary.
func buildTally(runID string, minted int, report dispatch.Report, collector metrics.Collector) metrics.Tally {
	tally := metrics.Tally{
		RunID:         runID,
		Minted:        minted,
		Completed:     report.Completed,
		Failed:        report.Failed,
		PublishErrors: report.PublishErrors,
		Elapsed:       report.Elapsed,
	}
	for _, out := range report.Outcomes {
		if len(out.Artifacts) > 0 {
			tally.Published++
		}
	}
	if collector != nil {
		tally.PeakInFlight = collector.PeakInFlight()
	}
	return tally
}

// printTally writes the colored completed/failed/minted line and the
// publish counters.
func printTally(w io.Writer, t metrics.Tally) {
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run %s finished in %s\n", t.RunID, t.Elapsed.Round(time.Millisecond))
	ok.Fprintf(w, "  completed: %d", t.Completed)
	fmt.Fprint(w, "  ")
	if t.Failed > 0 {
		bad.Fprintf(w, "failed: %d", t.Failed)
	} else {
		fmt.Fprintf(w, "failed: %d", t.Failed)
	}
	fmt.Fprintf(w, "  minted: %d\n", t.Minted)

	fmt.Fprintf(w, "  published: %d", t.Published)
	if t.PublishErrors > 0 {
		fmt.Fprint(w, "  ")
		color.New(color.FgYellow).Fprintf(w, "publish errors: %d", t.PublishErrors)
	}
	fmt.Fprintf(w, "  peak in flight: %d\n", t.PeakInFlight)
}
