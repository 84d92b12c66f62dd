// Package summarizer provides summary generation for batch results.
package summarizer

import (
	"time"

	"github.com/user/hlsnap/pkg/batch"
)

// maxFailureSamples caps how many failures a summary lists in detail.
const maxFailureSamples = 5

// Summary condenses a batch report for human consumption.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Run settings
	Root        string
	Engine      string
	Concurrency int

	// Counters
	Total     int
	Succeeded int
	Skipped   int
	Failed    int

	// Timing
	Elapsed time.Duration

	// Failures is a sample of failed bundles, at most maxFailureSamples.
	Failures []Failure
}

// Failure is one failed bundle with its report label.
type Failure struct {
	Bundle string
	Reason string
}

// FromReport builds a Summary from a finished batch report.
func FromReport(r *batch.Report, root, engine string, concurrency int) *Summary {
	s := &Summary{
		GeneratedAt: time.Now(),
		Root:        root,
		Engine:      engine,
		Concurrency: concurrency,
		Total:       len(r.Outcomes),
		Succeeded:   r.Succeeded,
		Skipped:     r.Skipped,
		Failed:      r.Failed,
		Elapsed:     r.FinishedAt.Sub(r.StartedAt),
	}
	for _, o := range r.Outcomes {
		if o.Status != batch.StatusFailed {
			continue
		}
		if len(s.Failures) == maxFailureSamples {
			break
		}
		s.Failures = append(s.Failures, Failure{
			Bundle: o.Bundle.RelPath,
			Reason: o.Reason,
		})
	}
	return s
}
