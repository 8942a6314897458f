package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/weiihann/procbench/metrics"
)

const helperEnv = "PROCBENCH_WANT_HELPER_PROCESS"

// TestHelperProcess stands in for the resource-accounting tool. Each
// argument after "--" is a key=value instruction.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}

	exit := 0

	for _, arg := range args {
		key, value, _ := strings.Cut(arg, "=")

		switch key {
		case "user":
			fmt.Fprintf(os.Stderr, "\tUser time (seconds): %s\n", value)
		case "sys":
			fmt.Fprintf(os.Stderr, "\tSystem time (seconds): %s\n", value)
		case "rss":
			fmt.Fprintf(os.Stderr, "\tMaximum resident set size (kbytes): %s\n", value)
		case "minor":
			fmt.Fprintf(os.Stderr, "\tMinor (reclaiming a frame) page faults: %s\n", value)
		case "exit":
			exit, _ = strconv.Atoi(value)
		case "sleep":
			d, _ := time.ParseDuration(value)
			time.Sleep(d)
		case "barrier":
			dir, n, _ := strings.Cut(value, ":")
			if !waitBarrier(dir, n) {
				os.Exit(99)
			}
		}
	}

	fmt.Fprintln(os.Stdout, "benchmark output that must be discarded")
	fmt.Fprintln(os.Stderr, "\tExit status:", exit)
	os.Exit(exit)
}

// waitBarrier registers this process in dir and waits until want
// processes have registered, which only happens if they overlap.
func waitBarrier(dir, want string) bool {
	n, _ := strconv.Atoi(want)

	f, err := os.CreateTemp(dir, "arrived-*")
	if err != nil {
		return false
	}
	f.Close()

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(dir)
		if len(entries) >= n {
			return true
		}

		time.Sleep(10 * time.Millisecond)
	}

	return false
}

func helperRunner(timeout time.Duration) *Runner {
	return NewRunner(
		[]string{os.Args[0], "-test.run=^TestHelperProcess$", "--"},
		[]string{helperEnv + "=1"},
		timeout,
		discardLogger(),
	)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o755); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestRunBatchSimple(t *testing.T) {
	spec := BatchSpec{
		Kind: KindSimple,
		Invocations: []Invocation{{Args: []string{
			"loader", "user=0.5", "sys=0.25", "rss=2048", "exit=3",
		}}},
	}

	rec, err := helperRunner(0).RunBatch(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if rec.UserTime != 0.5 {
		t.Errorf("user_time = %v, want 0.5", rec.UserTime)
	}
	if rec.SysTime != 0.25 {
		t.Errorf("sys_time = %v, want 0.25", rec.SysTime)
	}
	if rec.MaxRSSKB != 2048 {
		t.Errorf("max_rss_kb = %d, want 2048", rec.MaxRSSKB)
	}
	if rec.ExitCode != 3 {
		t.Errorf("exit_code = %d, want 3", rec.ExitCode)
	}
	if rec.WallTime <= 0 {
		t.Errorf("wall_time = %v, want > 0", rec.WallTime)
	}
}

func TestRunBatchConcurrentSumsRecords(t *testing.T) {
	spec := BatchSpec{
		Kind: KindConcurrent,
		Invocations: []Invocation{
			{Args: []string{"prog", "user=1.0", "rss=100", "minor=10", "exit=0"}},
			{Args: []string{"prog", "user=2.0", "rss=200", "minor=20", "exit=0"}},
			{Args: []string{"prog", "user=3.0", "rss=300", "minor=30", "exit=1"}},
		},
	}

	rec, err := helperRunner(0).RunBatch(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if rec.UserTime != 6.0 {
		t.Errorf("user_time = %v, want 6.0", rec.UserTime)
	}
	if rec.MaxRSSKB != 600 {
		t.Errorf("max_rss_kb = %d, want 600", rec.MaxRSSKB)
	}
	if rec.MinorFaults != 60 {
		t.Errorf("minor_faults = %d, want 60", rec.MinorFaults)
	}
	if rec.ExitCode != 1 {
		t.Errorf("exit_code = %d, want 1", rec.ExitCode)
	}
	if rec.WallTime <= 0 {
		t.Errorf("wall_time = %v, want > 0", rec.WallTime)
	}
}

func TestRunBatchConcurrentProcessesOverlap(t *testing.T) {
	const n = 4

	barrier := t.TempDir()
	arg := fmt.Sprintf("barrier=%s:%d", barrier, n)

	spec := BatchSpec{Kind: KindConcurrent}
	for range n {
		spec.Invocations = append(spec.Invocations,
			Invocation{Args: []string{"prog", arg}})
	}

	rec, err := helperRunner(time.Minute).RunBatch(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if rec.ExitCode != 0 {
		t.Errorf("exit_code = %d, want 0 (processes did not overlap)", rec.ExitCode)
	}
}

func TestRunBatchTimeout(t *testing.T) {
	spec := BatchSpec{
		Kind:        KindSimple,
		Invocations: []Invocation{{Args: []string{"loader", "sleep=30s"}}},
	}

	start := time.Now()

	rec, err := helperRunner(200*time.Millisecond).RunBatch(
		context.Background(), spec)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if rec.ExitCode != ExitTimedOut {
		t.Errorf("exit_code = %d, want %d", rec.ExitCode, ExitTimedOut)
	}
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestRunBatchLaunchFailure(t *testing.T) {
	r := NewRunner(
		[]string{filepath.Join(t.TempDir(), "no-such-time")},
		nil, 0, discardLogger(),
	)

	spec := BatchSpec{
		Kind:        KindConcurrent,
		Invocations: []Invocation{{Args: []string{"prog"}}, {Args: []string{"prog"}}},
	}

	if _, err := r.RunBatch(context.Background(), spec); err == nil {
		t.Error("expected error when the accounting tool cannot start")
	}
}

func TestRunBatchRejectsInvalidSpecs(t *testing.T) {
	r := helperRunner(0)

	_, err := r.RunBatch(context.Background(), BatchSpec{Kind: KindConcurrent})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("empty batch err = %v, want ErrEmptyBatch", err)
	}

	twoForSimple := BatchSpec{
		Kind:        KindSimple,
		Invocations: []Invocation{{Args: []string{"a"}}, {Args: []string{"b"}}},
	}
	if _, err := r.RunBatch(context.Background(), twoForSimple); err == nil {
		t.Error("expected error for simple batch with two invocations")
	}

	if _, err := r.Strategy(Kind(9)); err == nil {
		t.Error("expected error for unknown batch kind")
	}
}

func TestCombineConcurrent(t *testing.T) {
	records := []metrics.Record{
		{UserTime: 1.0, ExitCode: 0},
		{UserTime: 2.0, ExitCode: 0},
		{UserTime: 3.0, ExitCode: 1},
	}

	got := combineConcurrent(records, 2*time.Second)

	if got.UserTime != 6.0 {
		t.Errorf("user_time = %v, want 6.0", got.UserTime)
	}
	if got.ExitCode != 1 {
		t.Errorf("exit_code = %d, want 1", got.ExitCode)
	}
	if got.WallTime != 2.0 {
		t.Errorf("wall_time = %v, want 2.0 (single span, not summed)", got.WallTime)
	}
}

func TestExitStatusWithoutState(t *testing.T) {
	if got := exitStatus(context.Background(), nil); got != 1 {
		t.Errorf("exitStatus(nil) = %d, want 1", got)
	}
}
