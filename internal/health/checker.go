// Package health reports whether jacinta and the systems it depends on are
// usable, in the shape expected by liveness, readiness and startup probes.
package health

import (
	"context"
	"time"
)

// Checker checks one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// Result is the outcome of a single Checker.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
}

func newResult(status Status, message string) *Result {
	return &Result{Status: status, Message: message, Details: map[string]any{}}
}

// Healthy returns a healthy result.
func Healthy(message string) *Result { return newResult(StatusHealthy, message) }

// Degraded returns a degraded result.
func Degraded(message string) *Result { return newResult(StatusDegraded, message) }

// Unhealthy returns an unhealthy result.
func Unhealthy(message string) *Result { return newResult(StatusUnhealthy, message) }

// WithDetail attaches a detail and returns r.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) *Result
}

func (c CheckerFunc) Name() string                      { return c.CheckName }
func (c CheckerFunc) Check(ctx context.Context) *Result { return c.Fn(ctx) }
