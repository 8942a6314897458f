package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weiihann/procbench/metrics"
)

// ErrNoTrials is returned when asked to aggregate zero trials.
var ErrNoTrials = errors.New("trial count must be at least 1")

// RunTrials runs spec the given number of times, one trial after another,
// and returns every per-trial record in order.
func RunTrials(
	ctx context.Context,
	logger *slog.Logger,
	runner BatchRunner,
	spec BatchSpec,
	trials int,
) ([]metrics.Record, error) {
	if trials < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrNoTrials, trials)
	}

	records := make([]metrics.Record, 0, trials)

	for trial := 1; trial <= trials; trial++ {
		logger.InfoContext(ctx, "trial",
			slog.Int("trial", trial),
			slog.Int("of", trials),
		)

		rec, err := runner.RunBatch(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}

		// A trial cut short by cancellation is not a measurement.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}

		records = append(records, rec)
	}

	return records, nil
}

// Summarize averages records into a Summary for program and variant.
func Summarize(
	program string,
	v Variant,
	concurrency int,
	records []metrics.Record,
) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, ErrNoTrials
	}

	return Summary{
		Program:     program,
		Variant:     v,
		Concurrency: concurrency,
		ExitCode:    metrics.MaxExitCode(records),
		Means:       metrics.Reduce(records, metrics.Mean),
	}, nil
}

// Job is one program and variant to benchmark.
type Job struct {
	Program     string
	Variant     Variant
	Concurrency int
	Spec        BatchSpec
}

// Aggregate runs every trial of job sequentially and reduces them to a
// Summary. A failed process does not stop the remaining trials; its
// record is averaged in as observed.
func Aggregate(
	ctx context.Context,
	logger *slog.Logger,
	runner BatchRunner,
	job Job,
	trials int,
) (Summary, error) {
	records, err := RunTrials(ctx, logger, runner, job.Spec, trials)
	if err != nil {
		return Summary{}, err
	}

	return Summarize(job.Program, job.Variant, job.Concurrency, records)
}
