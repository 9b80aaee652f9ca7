package health

import (
	"context"
	"sync/atomic"
	"time"
)

// ProbeResult is the JSON body of every probe endpoint.
type ProbeResult struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// ProbeManager answers liveness, readiness and startup probes.
//
// Liveness only reports that the process runs. Readiness runs the registered
// checkers and fails while shutting down. Startup passes once
// MarkInitialized has been called.
type ProbeManager struct {
	*Manager

	version     string
	started     time.Time
	initialized atomic.Bool
	shutdown    atomic.Bool
}

// NewProbeManager creates a ProbeManager reporting version.
func NewProbeManager(version string) *ProbeManager {
	return &ProbeManager{Manager: NewManager(), version: version, started: time.Now()}
}

// MarkInitialized flips the startup probe to healthy.
func (pm *ProbeManager) MarkInitialized() { pm.initialized.Store(true) }

// MarkShutdown makes readiness fail so load balancers drain the instance.
func (pm *ProbeManager) MarkShutdown() { pm.shutdown.Store(true) }

func (pm *ProbeManager) result(status Status, checks map[string]*Result) *ProbeResult {
	return &ProbeResult{
		Status:    status,
		Version:   pm.version,
		Uptime:    time.Since(pm.started).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	}
}

// Liveness is degraded during shutdown and healthy otherwise.
func (pm *ProbeManager) Liveness(ctx context.Context) *ProbeResult {
	if pm.shutdown.Load() {
		return pm.result(StatusDegraded, nil)
	}
	return pm.result(StatusHealthy, nil)
}

// Readiness runs all checkers.
func (pm *ProbeManager) Readiness(ctx context.Context) *ProbeResult {
	if pm.shutdown.Load() {
		return pm.result(StatusUnhealthy, nil)
	}
	checks := pm.Check(ctx)
	return pm.result(Overall(checks), checks)
}

// Startup is unhealthy until MarkInitialized.
func (pm *ProbeManager) Startup(ctx context.Context) *ProbeResult {
	if !pm.initialized.Load() {
		return pm.result(StatusUnhealthy, nil)
	}
	return pm.result(StatusHealthy, nil)
}
