package health

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/jacinta/internal/provider"
	"github.com/felixgeelhaar/jacinta/internal/store"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker verifies the task store answers queries.
type StoreChecker struct {
	store store.Store
}

// NewStoreChecker creates a StoreChecker.
func NewStoreChecker(st store.Store) *StoreChecker {
	return &StoreChecker{store: st}
}

func (c *StoreChecker) Name() string { return "store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	if p, ok := c.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return Unhealthy("store unreachable").WithDetail("error", err.Error())
		}
	}
	pending, err := c.store.List(ctx, task.StatusPending)
	if err != nil {
		return Unhealthy("store query failed").WithDetail("error", err.Error())
	}
	return Healthy("store reachable").WithDetail("pending_tasks", len(pending))
}

// RepositoryChecker verifies git is installed and, when dir is set, that the
// working copy exists.
type RepositoryChecker struct {
	dir string
}

// NewRepositoryChecker creates a RepositoryChecker for the working copy at dir.
func NewRepositoryChecker(dir string) *RepositoryChecker {
	return &RepositoryChecker{dir: dir}
}

func (c *RepositoryChecker) Name() string { return "repository" }

func (c *RepositoryChecker) Check(ctx context.Context) *Result {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return Unhealthy("git command not found in PATH").
			WithDetail("suggestion", "Install Git from https://git-scm.com/downloads")
	}

	out, err := exec.CommandContext(ctx, gitPath, "--version").CombinedOutput()
	if err != nil {
		return Unhealthy("failed to execute git").WithDetail("error", err.Error())
	}
	version := parseGitVersion(strings.TrimSpace(string(out)))

	var res *Result
	switch major := majorVersion(version); {
	case version == "":
		res = Degraded("git version cannot be parsed")
	case major > 0 && major < 2:
		res = Degraded("git version is older than 2.0").
			WithDetail("suggestion", "Upgrade Git to version 2.0 or later")
	default:
		res = Healthy("git is available")
	}
	res.WithDetail("git_path", gitPath).WithDetail("version", version)

	if c.dir == "" {
		return res
	}
	if _, err := os.Stat(filepath.Join(c.dir, ".git")); err != nil {
		return Unhealthy("repository working copy missing").
			WithDetail("path", c.dir).
			WithDetail("suggestion", "Set repository.url so the working copy is cloned at startup")
	}
	return res.WithDetail("path", c.dir)
}

// parseGitVersion extracts "2.39.2" from "git version 2.39.2.windows.1".
func parseGitVersion(output string) string {
	fields := strings.Fields(output)
	if len(fields) < 3 {
		return ""
	}
	v := fields[2]
	if v == "" || v[0] < '0' || v[0] > '9' {
		return ""
	}
	for _, suffix := range []string{".windows", ".darwin", ".linux"} {
		if i := strings.Index(v, suffix); i > 0 {
			v = v[:i]
		}
	}
	return v
}

func majorVersion(version string) int {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

// ProviderChecker calls Health on the model backend. An unreachable backend
// only degrades readiness: the API keeps serving while passes fail.
type ProviderChecker struct {
	client provider.Client
}

// NewProviderChecker creates a ProviderChecker.
func NewProviderChecker(c provider.Client) *ProviderChecker {
	return &ProviderChecker{client: c}
}

func (c *ProviderChecker) Name() string { return "provider" }

func (c *ProviderChecker) Check(ctx context.Context) *Result {
	if c.client == nil {
		return Degraded("no model provider configured")
	}
	if err := c.client.Health(ctx); err != nil {
		return Degraded("provider unhealthy").
			WithDetail("provider", c.client.Name()).
			WithDetail("error", err.Error())
	}
	return Healthy("provider reachable").WithDetail("provider", c.client.Name())
}
