package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/jacinta/internal/api"
	"github.com/felixgeelhaar/jacinta/internal/health"
	"github.com/felixgeelhaar/jacinta/internal/metrics"
	"github.com/felixgeelhaar/jacinta/internal/runner"
	"github.com/felixgeelhaar/jacinta/internal/server"
	"github.com/felixgeelhaar/jacinta/internal/service"
	"github.com/felixgeelhaar/jacinta/internal/telemetry"
	"github.com/felixgeelhaar/jacinta/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the task API and run passes on a schedule",
	Long: `Start the HTTP task API together with the background runner.

The server exposes:
  /tasks            task management API (see /openapi.yaml)
  /metrics          Prometheus metrics
  /health/live      liveness probe
  /health/ready     readiness probe (store, repository and provider checks)
  /health/startup   startup probe
  /healthz          backward-compatible readiness endpoint

The runner claims pending tasks immediately and then every runner.interval.
On SIGTERM or SIGINT the server drains open connections and the runner
finishes the job it is executing before exiting.

Example:
  # Serve on the configured address
  jacinta serve

  # Serve on another port without the background runner
  jacinta serve --address :9090 --no-runner`,
	RunE: runServe,
}

var (
	serveAddress  string
	serveInterval time.Duration
	serveNoRunner bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "address to listen on (overrides server.address)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "time between runner passes (overrides runner.interval)")
	serveCmd.Flags().BoolVar(&serveNoRunner, "no-runner", false, "serve the API only; do not process tasks")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveAddress != "" {
		a.cfg.Server.Address = serveAddress
	}
	if serveInterval > 0 {
		a.cfg.Runner.Interval = serveInterval
	}

	info := version.Get()
	telCfg := a.cfg.Telemetry
	telCfg.ServiceVersion = info.Version
	shutdownTracing, err := telemetry.InitProvider(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			a.logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	reg, m := metrics.NewRegistry()

	probes := health.NewProbeManager(info.Version)
	probes.Add(health.NewStoreChecker(a.store))

	var pipe *pipeline
	if !serveNoRunner {
		pipe, err = a.newPipeline(ctx, m)
		if err != nil {
			return err
		}
		defer pipe.Close()
		probes.Add(
			health.NewRepositoryChecker(pipe.repo.Dir()),
			health.NewProviderChecker(pipe.provider),
		)
	}

	handler, err := api.New(service.New(a.store, a.logger), api.Options{
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Logger:      a.logger,
		Metrics:     m,
	})
	if err != nil {
		return err
	}
	srv := server.New(a.cfg.Server, handler, metrics.HandlerFor(reg), probes, a.logger)

	l, err := net.Listen("tcp", a.cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Address, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "jacinta %s listening on http://%s\n", info.Version, l.Addr())
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl+C to stop the server\n\n")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(l)
	})
	if pipe != nil {
		g.Go(func() error {
			return runner.NewScheduler(pipe.runner, a.cfg.Runner.Interval, a.logger).Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		return srv.Shutdown(context.WithoutCancel(gctx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped gracefully")
	return nil
}
