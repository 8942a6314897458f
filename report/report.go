// Package report writes benchmark summaries to CSV and formats finished
// results into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/samber/lo"
	"github.com/weiihann/procbench/harness"
	"github.com/weiihann/procbench/metrics"
)

// Generate writes a markdown comparison table for the given summaries,
// one section per program with the fastest variant as the baseline.
func Generate(w io.Writer, summaries []harness.Summary) error {
	if len(summaries) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	failed := lo.Filter(summaries, func(s harness.Summary, _ int) bool {
		return s.ExitCode != 0
	})
	if len(failed) == 0 {
		fmt.Fprintln(w, "Exit status: **all succeeded**")
	} else {
		fmt.Fprintln(w, "Exit status: **FAILURES**")

		for _, s := range failed {
			fmt.Fprintf(w, "  - %s/%s: exit %d\n", s.Program, s.Variant, s.ExitCode)
		}
	}

	byProgram := lo.GroupBy(summaries, func(s harness.Summary) string {
		return s.Program
	})
	programs := lo.Uniq(lo.Map(summaries, func(s harness.Summary, _ int) string {
		return s.Program
	}))

	for _, program := range programs {
		rows := byProgram[program]
		fastest := findFastest(rows)

		fmt.Fprintln(w)
		fmt.Fprintf(w, "### %s (concurrency %d)\n", program, rows[0].Concurrency)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Variant | Wall | User | Sys | Max RSS "+
			"| Minor Faults | Major Faults | Ctx (vol/invol) | Slowdown |")
		fmt.Fprintln(w, "|---------|------|------|-----|---------"+
			"|--------------|--------------|-----------------|----------|")

		for _, s := range rows {
			slowdown := 1.0
			wall := s.Mean(metrics.WallTime)
			if fastest > 0 && wall > 0 {
				slowdown = wall / fastest
			}

			fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %.0f | %.0f | %.0f/%.0f | %.2fx |\n",
				s.Variant,
				formatSeconds(wall),
				formatSeconds(s.Mean(metrics.UserTime)),
				formatSeconds(s.Mean(metrics.SysTime)),
				formatKB(s.Mean(metrics.MaxRSSKB)),
				s.Mean(metrics.MinorFaults),
				s.Mean(metrics.MajorFaults),
				s.Mean(metrics.VoluntaryCtx),
				s.Mean(metrics.InvoluntaryCtx),
				slowdown,
			)
		}
	}

	return nil
}

// GenerateJSON writes summaries as JSON to w.
func GenerateJSON(w io.Writer, summaries []harness.Summary) error {
	type row struct {
		Program     string             `json:"program"`
		Variant     string             `json:"variant"`
		Concurrency int                `json:"concurrency"`
		ExitCode    int                `json:"exit_code"`
		Means       map[string]float64 `json:"means"`
	}

	rows := lo.Map(summaries, func(s harness.Summary, _ int) row {
		means := make(map[string]float64, metrics.NumFields)
		for _, f := range metrics.Fields() {
			means[f.String()] = s.Mean(f)
		}

		return row{
			Program:     s.Program,
			Variant:     string(s.Variant),
			Concurrency: s.Concurrency,
			ExitCode:    s.ExitCode,
			Means:       means,
		}
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(rows)
}

func findFastest(summaries []harness.Summary) float64 {
	fastest := math.MaxFloat64
	for _, s := range summaries {
		if wall := s.Mean(metrics.WallTime); wall > 0 && wall < fastest {
			fastest = wall
		}
	}

	if fastest == math.MaxFloat64 {
		return 0
	}

	return fastest
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%.0fms", s*1000)
	}

	return fmt.Sprintf("%.2fs", s)
}

func formatKB(kb float64) string {
	if kb <= 0 {
		return "-"
	}

	units := []string{"KB", "MB", "GB", "TB"}
	size := kb
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
