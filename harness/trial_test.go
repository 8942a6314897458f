package harness

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/weiihann/procbench/metrics"
)

// fakeRunner replays records in order and counts batches.
type fakeRunner struct {
	records []metrics.Record
	errAt   int
	calls   int
	specs   []BatchSpec
}

func (f *fakeRunner) RunBatch(
	_ context.Context,
	spec BatchSpec,
) (metrics.Record, error) {
	f.calls++
	f.specs = append(f.specs, spec)

	if f.errAt > 0 && f.calls == f.errAt {
		return metrics.Record{}, errors.New("launch failed")
	}

	if len(f.records) == 0 {
		return metrics.Record{}, nil
	}

	return f.records[(f.calls-1)%len(f.records)], nil
}

func TestAggregateIdenticalTrials(t *testing.T) {
	rec := metrics.Record{
		UserTime: 0.75, SysTime: 0.05, VoluntaryCtx: 9, InvoluntaryCtx: 3,
		MaxRSSKB: 1000, MinorFaults: 120, MajorFaults: 1, WallTime: 0.8,
	}
	runner := &fakeRunner{records: []metrics.Record{rec}}
	job := Job{Program: "treap", Variant: VariantExec, Concurrency: 8}

	summary, err := Aggregate(context.Background(), discardLogger(), runner, job, 4)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if runner.calls != 4 {
		t.Errorf("batches run = %d, want 4", runner.calls)
	}
	if summary.Program != "treap" || summary.Variant != VariantExec ||
		summary.Concurrency != 8 {
		t.Errorf("summary identity = %+v", summary)
	}
	if got := summary.Mean(metrics.MaxRSSKB); got != 1000.0 {
		t.Errorf("avg_max_rss_kb = %v, want exactly 1000", got)
	}

	want := rec.Vector()
	for _, f := range metrics.Fields() {
		if math.Abs(summary.Mean(f)-want[f]) > 1e-9 {
			t.Errorf("avg %s = %v, want %v", f, summary.Mean(f), want[f])
		}
	}
}

func TestAggregateWorstExitCode(t *testing.T) {
	runner := &fakeRunner{records: []metrics.Record{
		{ExitCode: 0, WallTime: 1},
		{ExitCode: 2, WallTime: 2},
		{ExitCode: 1, WallTime: 3},
		{ExitCode: 0, WallTime: 6},
	}}

	summary, err := Aggregate(context.Background(), discardLogger(), runner,
		Job{Program: "sorting", Variant: VariantLib, Concurrency: 2}, 4)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if summary.ExitCode != 2 {
		t.Errorf("exit_code = %d, want 2", summary.ExitCode)
	}
	if got := summary.Mean(metrics.WallTime); got != 3.0 {
		t.Errorf("avg_wall_time = %v, want 3.0", got)
	}
}

func TestAggregateRejectsZeroTrials(t *testing.T) {
	runner := &fakeRunner{}

	_, err := Aggregate(context.Background(), discardLogger(), runner,
		Job{Program: "treap", Variant: VariantExec, Concurrency: 1}, 0)
	if !errors.Is(err, ErrNoTrials) {
		t.Errorf("err = %v, want ErrNoTrials", err)
	}
	if runner.calls != 0 {
		t.Errorf("batches run = %d, want 0", runner.calls)
	}
}

func TestRunTrialsStopsOnRunnerError(t *testing.T) {
	runner := &fakeRunner{errAt: 2}

	_, err := RunTrials(context.Background(), discardLogger(), runner,
		BatchSpec{Kind: KindSimple}, 5)
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	if runner.calls != 2 {
		t.Errorf("batches run = %d, want 2", runner.calls)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if _, err := Summarize("treap", VariantExec, 1, nil); !errors.Is(err, ErrNoTrials) {
		t.Errorf("err = %v, want ErrNoTrials", err)
	}
}

// cancellingRunner cancels the caller's context during its batch and still
// reports a record, as a killed process would.
type cancellingRunner struct {
	cancel context.CancelFunc
}

func (c cancellingRunner) RunBatch(
	_ context.Context,
	_ BatchSpec,
) (metrics.Record, error) {
	c.cancel()
	return metrics.Record{ExitCode: 137, WallTime: 0.5}, nil
}

func TestRunTrialsDiscardsCancelledTrial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, err := RunTrials(ctx, discardLogger(), cancellingRunner{cancel},
		BatchSpec{Kind: KindSimple}, 3)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if records != nil {
		t.Errorf("records = %+v, want nil", records)
	}
}
