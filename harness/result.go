// Package harness configures, runs and measures benchmark batches under a
// resource-accounting tool and reduces repeated trials to summaries.
package harness

import "github.com/weiihann/procbench/metrics"

// Summary is the reduction of every trial of one program and variant.
type Summary struct {
	Program     string  `json:"program"`
	Variant     Variant `json:"variant"`
	Concurrency int     `json:"concurrency"`
	// ExitCode is the largest exit status seen in any trial.
	ExitCode int `json:"exit_code"`
	// Means holds the arithmetic mean of each numeric field.
	Means metrics.Vector `json:"means"`
}

// Mean returns the averaged value of field f.
func (s Summary) Mean(f metrics.Field) float64 {
	return s.Means[f]
}
