package cmd

import (
	"context"
	"os"

	"github.com/felixgeelhaar/jacinta/internal/config"
	"github.com/felixgeelhaar/jacinta/internal/executor"
	"github.com/felixgeelhaar/jacinta/internal/hooks"
	"github.com/felixgeelhaar/jacinta/internal/log"
	"github.com/felixgeelhaar/jacinta/internal/metrics"
	"github.com/felixgeelhaar/jacinta/internal/planner"
	"github.com/felixgeelhaar/jacinta/internal/provider"
	"github.com/felixgeelhaar/jacinta/internal/runner"
	"github.com/felixgeelhaar/jacinta/internal/search"
	"github.com/felixgeelhaar/jacinta/internal/store"
	"github.com/felixgeelhaar/jacinta/internal/tui"
	"github.com/felixgeelhaar/jacinta/internal/vcs"
)

// app holds what every command needs: configuration, a logger and the
// task store. Commands that execute jobs additionally build a runner.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  store.Store
}

// loadConfig reads the config file and applies the logging flags.
func loadConfig() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger := log.FromStrings(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	log.SetDefaultLogger(logger)
	return cfg, logger, nil
}

// newApp loads configuration and opens the configured store.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", "driver", cfg.Store.Driver)
	return &app{cfg: cfg, logger: logger, store: st}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close store")
	}
}

// pipeline is everything a runner pass depends on.
type pipeline struct {
	runner   *runner.Runner
	provider provider.Client
	repo     *vcs.Repo
	hooks    *hooks.Registry
}

// newPipeline wires provider, planner, executors, hooks and metrics into a
// runner over the app's store.
func (a *app) newPipeline(ctx context.Context, m *metrics.Metrics) (*pipeline, error) {
	cfg := a.cfg

	client, err := provider.New(cfg.Provider)
	if err != nil {
		return nil, err
	}

	repo := vcs.New(cfg.Repository)
	if cfg.Repository.URL != "" {
		if cfg.Repository.Token == "" && os.Getenv("GITHUB_TOKEN") == "" {
			a.logger.Warn("GITHUB_TOKEN is not set; pushing generated code may fail", "url", cfg.Repository.URL)
		}
		if err := repo.EnsureCloned(ctx); err != nil {
			return nil, err
		}
	}

	registry := hooks.NewRegistry()
	if err := registry.Load(cfg.Hooks); err != nil {
		return nil, err
	}

	pl := planner.New(client, planner.Options{
		Model:       modelOr(cfg.Planner.Model, cfg.Provider.Model),
		Temperature: cfg.Planner.Temperature,
		MaxTokens:   cfg.Planner.MaxTokens,
	})
	dispatcher := &executor.Dispatcher{
		Research: executor.NewResearch(search.NewDuckDuckGo(cfg.Search), cfg.Search.TopN),
		Code:     executor.NewCode(client, repo, modelOr(cfg.Codegen.Model, cfg.Provider.Model)),
		AskUser:  executor.NewAskUser(newPrompter()),
	}

	r := runner.New(a.store, pl, dispatcher, cfg.Runner)
	r.SetLogger(a.logger)
	r.SetMetrics(m)
	r.SetHooks(registry)

	a.logger.Info("runner ready",
		"owner", r.Owner(),
		"provider", client.Name(),
		"hooks", registry.Count(),
		"resume_current", cfg.Runner.ResumeCurrent)
	return &pipeline{runner: r, provider: client, repo: repo, hooks: registry}, nil
}

func (p *pipeline) Close() {
	_ = p.provider.Close()
}

// newPrompter answers ask_user jobs with a form on a terminal and with
// plain line input otherwise.
func newPrompter() executor.Prompter {
	if interactive() {
		return tui.NewPrompter()
	}
	return executor.NewLinePrompter(os.Stdin, os.Stderr)
}

func interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func modelOr(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}
