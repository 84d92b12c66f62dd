package batch

import (
	"sort"
	"time"

	"github.com/user/hlsnap/pkg/scanner"
)

// Status classifies how a bundle fared.
type Status string

const (
	// StatusSucceeded means a fresh thumbnail is in place.
	StatusSucceeded Status = "succeeded"
	// StatusSkipped means the bundle was never attempted.
	StatusSkipped Status = "skipped"
	// StatusFailed means every attempt failed; any prior thumbnail remains.
	StatusFailed Status = "failed"
)

// Outcome records the result of one bundle.
type Outcome struct {
	Bundle   scanner.Bundle
	Status   Status
	Reason   string
	Err      error
	Elapsed  time.Duration
	Attempts int
}

// Report aggregates a whole run. Outcomes are sorted by bundle path so
// two runs over the same library produce identical reports.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome

	Succeeded int
	Skipped   int
	Failed    int
}

// Outcome returns the outcome for the bundle at relPath, if present.
func (r *Report) Outcome(relPath string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Bundle.RelPath == relPath {
			return o, true
		}
	}
	return Outcome{}, false
}

// finalize sorts outcomes and computes the counters.
func (r *Report) finalize() {
	sort.Slice(r.Outcomes, func(i, j int) bool {
		return r.Outcomes[i].Bundle.RelPath < r.Outcomes[j].Bundle.RelPath
	})
	r.Succeeded, r.Skipped, r.Failed = 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSucceeded:
			r.Succeeded++
		case StatusSkipped:
			r.Skipped++
		case StatusFailed:
			r.Failed++
		}
	}
}
