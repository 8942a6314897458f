// Package main provides the CLI entry point for procbench, a harness that
// compares the resource cost of running benchmark programs as standalone
// processes and as shared libraries under a common loader.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/weiihann/procbench/config"
	"github.com/weiihann/procbench/harness"
	"github.com/weiihann/procbench/logscan"
	"github.com/weiihann/procbench/report"
)

func main() {
	startedAt := time.Now()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(logger, startedAt)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, startedAt time.Time) *cobra.Command {
	root := &cobra.Command{
		Use:   "procbench",
		Short: "Compare the resource cost of process and shared-library execution",
		Long: `Procbench runs every benchmark program as N standalone processes and
as one loader process handling N shared-library payloads, measures each batch
with a resource-accounting tool, and writes averaged results to CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger, startedAt))
	root.AddCommand(newReportCmd())
	root.AddCommand(newSafeIDsCmd())

	return root
}

type runFlags struct {
	configPath  string
	trials      int
	concurrency int
	outPrefix   string
	timeout     time.Duration
}

func newRunCmd(logger *slog.Logger, startedAt time.Time) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Benchmark every program under every variant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			return runBenchmark(cmd.Context(), logger, cfg, startedAt)
		},
	}

	defaults := config.Default()

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "",
		"Path to a YAML run configuration (optional)")
	f.IntVar(&flags.trials, "trials", defaults.Trials,
		"Number of trials per program and variant")
	f.IntVar(&flags.concurrency, "concurrency", defaults.Concurrency,
		"Processes (exec) or payloads (lib, clam) per batch")
	f.StringVar(&flags.outPrefix, "out-prefix", defaults.OutPrefix,
		"Results file prefix; the file is <prefix>_<YYYYMMDD_HHMMSS>.csv")
	f.DurationVar(&flags.timeout, "timeout", 0,
		"Kill a batch that runs longer than this (0 = wait forever)")

	return cmd
}

// loadConfig reads the optional config file and applies any flag the user
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command, flags runFlags) (*config.Config, error) {
	cfg := config.Default()

	if flags.configPath != "" {
		var err error

		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("trials") {
		cfg.Trials = flags.trials
	}
	if changed("concurrency") {
		cfg.Concurrency = flags.concurrency
	}
	if changed("out-prefix") {
		cfg.OutPrefix = flags.outPrefix
	}
	if changed("timeout") {
		cfg.Timeout = flags.timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	startedAt time.Time,
) error {
	variants, err := cfg.ParsedVariants()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting benchmark",
		slog.Any("programs", cfg.Programs),
		slog.Any("variants", cfg.Variants),
		slog.Int("trials", cfg.Trials),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("timeout", cfg.Timeout),
	)

	driver := &harness.Driver{
		Programs:    cfg.Programs,
		Variants:    variants,
		Layout:      cfg.Layout(),
		Concurrency: cfg.Concurrency,
		Trials:      cfg.Trials,
		Runner:      harness.NewRunner(cfg.TimeCommand, cfg.Env, cfg.Timeout, logger),
		Logger:      logger,
	}

	// Surface configuration errors before the results file exists.
	if _, err := driver.Plan(); err != nil {
		return err
	}

	out, w, err := report.CreateFile(cfg.OutPrefix, startedAt)
	if err != nil {
		return err
	}
	defer out.Close()

	rows, err := driver.Run(ctx, w)
	if err != nil {
		return fmt.Errorf("benchmark: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close results file: %w", err)
	}

	logger.InfoContext(ctx, "results written",
		slog.String("path", out.Name()),
		slog.Int("rows", rows),
	)

	return nil
}

func newReportCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "report <results.csv>",
		Short: "Print a comparison table for a results file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open results: %w", err)
			}
			defer f.Close()

			summaries, err := report.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			if outputJSON {
				return report.GenerateJSON(cmd.OutOrStdout(), summaries)
			}

			return report.Generate(cmd.OutOrStdout(), summaries)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of table")

	return cmd
}

func newSafeIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "safe-ids <log-file>",
		Short: "Print the comma-separated ids of runs that reported OK",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			}

			ids, err := logscan.ScanFile(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), logscan.Join(ids))

			return nil
		},
	}
}
