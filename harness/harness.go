package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"syscall"
	"time"

	"github.com/weiihann/procbench/metrics"
	"golang.org/x/sync/errgroup"
)

// ExitTimedOut is recorded for a process killed by the batch timeout.
const ExitTimedOut = 124

// waitDelay bounds how long Wait keeps draining stderr after a kill.
const waitDelay = 5 * time.Second

// BatchRunner measures one batch and returns its aggregate record.
type BatchRunner interface {
	RunBatch(ctx context.Context, spec BatchSpec) (metrics.Record, error)
}

// Strategy runs a single batch shape.
type Strategy interface {
	Run(ctx context.Context, spec BatchSpec) (metrics.Record, error)
}

// Runner launches batches under a resource-accounting tool such as
// GNU time in verbose mode.
type Runner struct {
	// AccountingCommand is prepended to every invocation's arguments.
	AccountingCommand []string
	Env               []string
	// Timeout bounds a whole batch. Zero waits forever.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewRunner creates a Runner. Env is appended to the inherited
// environment of every child.
func NewRunner(
	accounting, env []string,
	timeout time.Duration,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		AccountingCommand: accounting,
		Env:               env,
		Timeout:           timeout,
		Logger:            logger,
	}
}

// Strategy returns the strategy that measures batches of kind k.
func (r *Runner) Strategy(k Kind) (Strategy, error) {
	switch k {
	case KindConcurrent:
		return concurrentStrategy{r}, nil
	case KindSimple:
		return simpleStrategy{r}, nil
	default:
		return nil, fmt.Errorf("no strategy for batch kind %s", k)
	}
}

// RunBatch runs spec to completion with the strategy matching its kind.
func (r *Runner) RunBatch(
	ctx context.Context,
	spec BatchSpec,
) (metrics.Record, error) {
	if err := spec.validate(); err != nil {
		return metrics.Record{}, err
	}

	strategy, err := r.Strategy(spec.Kind)
	if err != nil {
		return metrics.Record{}, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	return strategy.Run(ctx, spec)
}

// concurrentStrategy starts every invocation before waiting on any of them.
// Resource fields are summed across processes while wall time is the single
// span from the first start to the last exit, so the row reports the total
// load of N processes over the time they overlapped.
type concurrentStrategy struct {
	r *Runner
}

func (s concurrentStrategy) Run(
	ctx context.Context,
	spec BatchSpec,
) (metrics.Record, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	procs := make([]*process, 0, len(spec.Invocations))

	wallStart := time.Now()

	for i, inv := range spec.Invocations {
		p, err := s.r.start(ctx, inv)
		if err != nil {
			cancel()

			for _, started := range procs {
				_, _ = started.wait(ctx)
			}

			return metrics.Record{}, fmt.Errorf("start worker %d: %w", i, err)
		}

		procs = append(procs, p)
	}

	records := make([]metrics.Record, len(procs))

	var g errgroup.Group
	for i, p := range procs {
		g.Go(func() error {
			rec, err := p.wait(ctx)
			if err != nil {
				return fmt.Errorf("wait worker %d: %w", i, err)
			}

			records[i] = rec

			return nil
		})
	}

	err := g.Wait()

	wallElapsed := time.Since(wallStart)

	if err != nil {
		return metrics.Record{}, err
	}

	for i, rec := range records {
		if rec.ExitCode != 0 {
			s.r.Logger.Warn("worker failed",
				slog.Int("worker", i),
				slog.String("program", spec.Invocations[i].Args[0]),
				slog.Int("exit_code", rec.ExitCode),
			)
		}
	}

	return combineConcurrent(records, wallElapsed), nil
}

func combineConcurrent(
	records []metrics.Record,
	wall time.Duration,
) metrics.Record {
	total := metrics.Total(records)
	total.WallTime = wall.Seconds()

	return total
}

// simpleStrategy measures one process that handles every payload itself.
type simpleStrategy struct {
	r *Runner
}

func (s simpleStrategy) Run(
	ctx context.Context,
	spec BatchSpec,
) (metrics.Record, error) {
	inv := spec.Invocations[0]

	wallStart := time.Now()

	p, err := s.r.start(ctx, inv)
	if err != nil {
		return metrics.Record{}, fmt.Errorf("start process: %w", err)
	}

	rec, err := p.wait(ctx)

	wallElapsed := time.Since(wallStart)

	if err != nil {
		return metrics.Record{}, fmt.Errorf("wait process: %w", err)
	}

	rec.WallTime = wallElapsed.Seconds()

	if rec.ExitCode != 0 {
		s.r.Logger.Warn("process failed",
			slog.String("program", inv.Args[0]),
			slog.Int("payloads", len(inv.Args)-1),
			slog.Int("exit_code", rec.ExitCode),
		)
	}

	return rec, nil
}

type process struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
}

func (r *Runner) start(ctx context.Context, inv Invocation) (*process, error) {
	argv := slices.Concat(r.AccountingCommand, inv.Args)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	p := &process{cmd: cmd}
	cmd.Stdout = io.Discard
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return p, nil
}

// wait blocks until the process exits and returns its parsed accounting
// report with the exit status filled in. Only failures to observe the
// process are errors; a non-zero exit is data.
func (p *process) wait(ctx context.Context) (metrics.Record, error) {
	// Once the process has been reaped any remaining error concerns stderr
	// draining or the context, not the run itself.
	if err := p.cmd.Wait(); err != nil && p.cmd.ProcessState == nil {
		return metrics.Record{}, err
	}

	rec := metrics.Parse(p.stderr.String())
	rec.ExitCode = exitStatus(ctx, p.cmd.ProcessState)

	return rec, nil
}

// exitStatus maps a finished process to a non-negative status. Signals
// follow the shell convention of 128+signal so that the largest status in
// a batch is always a failure when any process failed. A process killed
// because its context was cancelled, rather than timed out, is therefore
// recorded by its signal (137 for SIGKILL); callers discard such trials.
func exitStatus(ctx context.Context, state *os.ProcessState) int {
	if state == nil {
		return 1
	}

	if code := state.ExitCode(); code >= 0 {
		return code
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ExitTimedOut
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}

	return 1
}
