package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jacinta/internal/metrics"
	"github.com/felixgeelhaar/jacinta/internal/runner"
	"github.com/felixgeelhaar/jacinta/internal/telemetry"
	"github.com/felixgeelhaar/jacinta/internal/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process pending tasks",
	Long: `Claim pending tasks from the local store and execute their jobs.

Without --once the runner repeats a pass every runner.interval until it is
interrupted. With --resume each pass also picks up current tasks that were
left unfinished by this runner or whose lease has expired.

Examples:
  # Process everything pending once and exit
  jacinta run --once

  # Keep running, resuming interrupted tasks
  jacinta run --resume --interval 30s`,
	RunE: runRun,
}

var (
	runOnce     bool
	runResume   bool
	runInterval time.Duration
	runOwner    string
)

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single pass and exit")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "also resume unfinished current tasks (overrides runner.resume_current)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "time between passes (overrides runner.interval)")
	runCmd.Flags().StringVar(&runOwner, "owner", "", "runner identity recorded on claimed tasks (overrides runner.owner)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if runResume {
		a.cfg.Runner.ResumeCurrent = true
	}
	if runInterval > 0 {
		a.cfg.Runner.Interval = runInterval
	}
	if runOwner != "" {
		a.cfg.Runner.Owner = runOwner
	}

	telCfg := a.cfg.Telemetry
	telCfg.ServiceVersion = version.Get().Version
	shutdownTracing, err := telemetry.InitProvider(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

	pipe, err := a.newPipeline(ctx, metrics.Discard())
	if err != nil {
		return err
	}
	defer pipe.Close()

	out := cmd.OutOrStdout()
	if runOnce {
		report, err := pipe.runner.RunPendingPass(ctx)
		if report != nil {
			printPassReport(out, report)
		}
		return err
	}

	sched := runner.NewScheduler(pipe.runner, a.cfg.Runner.Interval, a.logger)
	sched.OnPass = func(report *runner.PassReport, err error) {
		if report != nil && len(report.Tasks) > 0 {
			printPassReport(out, report)
		}
	}
	return sched.Run(ctx)
}

func printPassReport(w io.Writer, report *runner.PassReport) {
	fmt.Fprintln(w, report.String())
	for _, t := range report.Tasks {
		line := fmt.Sprintf("  %-10s %s", t.Outcome, t.Title)
		if t.JobsRun > 0 || t.JobsSkipped > 0 {
			line += fmt.Sprintf(" (%d jobs run, %d skipped)", t.JobsRun, t.JobsSkipped)
		}
		if t.Err != nil {
			line += ": " + t.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
}
