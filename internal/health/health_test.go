package health

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jacinta/internal/provider"
	"github.com/felixgeelhaar/jacinta/internal/store"
)

func fixed(name string, status Status) Checker {
	return CheckerFunc{CheckName: name, Fn: func(ctx context.Context) *Result {
		return newResult(status, name)
	}}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := map[string]*Result{}
			for i, s := range tt.statuses {
				results[string(rune('a'+i))] = newResult(s, "")
			}
			assert.Equal(t, tt.want, Overall(results))
		})
	}
}

func TestManagerTimesOutSlowCheckers(t *testing.T) {
	m := NewManager()
	m.SetTimeout(10 * time.Millisecond)
	m.Add(fixed("fast", StatusHealthy), CheckerFunc{CheckName: "slow", Fn: func(ctx context.Context) *Result {
		<-ctx.Done()
		return Unhealthy("timed out")
	}})

	results := m.Check(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, StatusHealthy, results["fast"].Status)
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, []string{"fast", "slow"}, m.Names())
}

func TestProbes(t *testing.T) {
	pm := NewProbeManager("1.2.3")
	pm.Add(fixed("store", StatusHealthy))
	ctx := context.Background()

	assert.Equal(t, StatusUnhealthy, pm.Startup(ctx).Status)
	pm.MarkInitialized()
	assert.Equal(t, StatusHealthy, pm.Startup(ctx).Status)

	ready := pm.Readiness(ctx)
	assert.Equal(t, StatusHealthy, ready.Status)
	assert.Equal(t, "1.2.3", ready.Version)
	assert.Contains(t, ready.Checks, "store")

	pm.MarkShutdown()
	assert.Equal(t, StatusUnhealthy, pm.Readiness(ctx).Status)
	assert.Equal(t, StatusDegraded, pm.Liveness(ctx).Status)
}

func TestStoreChecker(t *testing.T) {
	res := NewStoreChecker(store.NewMemoryStore()).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, 0, res.Details["pending_tasks"])
}

func TestParseGitVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"git version 2.39.2", "2.39.2"},
		{"git version 2.42.0.windows.1", "2.42.0"},
		{"git version 2.37.1.darwin", "2.37.1"},
		{"git version", ""},
		{"git version abc", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseGitVersion(tt.in), tt.in)
	}
	assert.Equal(t, 2, majorVersion("2.39.2"))
	assert.Equal(t, 0, majorVersion(""))
}

func TestRepositoryChecker(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	res := NewRepositoryChecker(dir).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)

	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	res = NewRepositoryChecker(dir).Check(context.Background())
	assert.NotEqual(t, StatusUnhealthy, res.Status)

	res = NewRepositoryChecker("").Check(context.Background())
	assert.NotEqual(t, StatusUnhealthy, res.Status)
}

type healthClient struct {
	err error
}

func (c *healthClient) Generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	return nil, stderrors.New("unused")
}
func (c *healthClient) Health(ctx context.Context) error { return c.err }
func (c *healthClient) Name() string                     { return "stub" }
func (c *healthClient) Close() error                     { return nil }

func TestProviderChecker(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewProviderChecker(&healthClient{}).Check(context.Background()).Status)

	res := NewProviderChecker(&healthClient{err: stderrors.New("401")}).Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "401", res.Details["error"])

	assert.Equal(t, StatusDegraded, NewProviderChecker(nil).Check(context.Background()).Status)
}
