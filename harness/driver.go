package harness

import (
	"context"
	"fmt"
	"log/slog"
)

// RowWriter receives each finished Summary.
type RowWriter interface {
	Write(s Summary) error
}

// Driver benchmarks every program under every variant, one pair at a time.
type Driver struct {
	Programs    []string
	Variants    []Variant
	Layout      Layout
	Concurrency int
	Trials      int
	Runner      BatchRunner
	Logger      *slog.Logger
}

// Plan configures every program and variant pair. Any configuration error
// is returned before a single process is spawned.
func (d *Driver) Plan() ([]Job, error) {
	if d.Trials < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrNoTrials, d.Trials)
	}

	jobs := make([]Job, 0, len(d.Programs)*len(d.Variants))

	for _, program := range d.Programs {
		for _, v := range d.Variants {
			spec, err := d.Layout.Configure(program, v, d.Concurrency)
			if err != nil {
				return nil, fmt.Errorf("configure %s/%s: %w", program, v, err)
			}

			jobs = append(jobs, Job{
				Program:     program,
				Variant:     v,
				Concurrency: d.Concurrency,
				Spec:        spec,
			})
		}
	}

	return jobs, nil
}

// Run executes the plan and hands each summary to w as soon as it is
// ready. Pairs with missing artifacts or that could not be launched are
// skipped. It returns the number of rows written.
func (d *Driver) Run(ctx context.Context, w RowWriter) (int, error) {
	jobs, err := d.Plan()
	if err != nil {
		return 0, err
	}

	rows := 0

	for _, job := range jobs {
		logger := d.Logger.With(
			slog.String("program", job.Program),
			slog.String("variant", string(job.Variant)),
		)

		if missing := job.Spec.MissingPaths(); len(missing) > 0 {
			logger.WarnContext(ctx, "missing resources, skipping",
				slog.Any("missing", missing),
			)

			continue
		}

		logger.InfoContext(ctx, "benchmarking",
			slog.Int("concurrency", job.Concurrency),
			slog.Int("trials", d.Trials),
		)

		summary, err := Aggregate(ctx, logger, d.Runner, job, d.Trials)
		if err != nil {
			if ctx.Err() != nil {
				return rows, ctx.Err()
			}

			logger.WarnContext(ctx, "benchmark failed, skipping",
				slog.String("error", err.Error()),
			)

			continue
		}

		if err := ctx.Err(); err != nil {
			return rows, err
		}

		if summary.ExitCode != 0 {
			logger.WarnContext(ctx, "non-zero exit status recorded",
				slog.Int("exit_code", summary.ExitCode),
			)
		}

		if err := w.Write(summary); err != nil {
			return rows, fmt.Errorf("write %s/%s: %w",
				job.Program, job.Variant, err)
		}

		rows++
	}

	return rows, nil
}
