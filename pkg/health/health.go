// Package health implements the combined health, liveness and readiness
// checks (/healthz, /livez, /readyz) served alongside the main routes.
package health

import (
	"sync"
	"time"

	"github.com/storacha/cloud-mirror/pkg/build"
)

// Status represents the health status
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Response represents a health check response
type Response struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Checker reports liveness (process is up) and readiness (dependencies are
// reachable) independently. The serve command marks the checker ready once
// the Fleet Controller has constructed its blob store, status store, and
// queue adapters.
type Checker struct {
	mu    sync.RWMutex
	ready bool
}

// NewChecker creates a new health checker, not ready until SetReady(true).
func NewChecker() *Checker {
	return &Checker{}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// IsReady returns the readiness state
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// LivenessCheck performs a liveness check
func (c *Checker) LivenessCheck() Response {
	return Response{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Version:   build.Version,
	}
}

// ReadinessCheck performs a readiness check
func (c *Checker) ReadinessCheck() Response {
	status := StatusOK
	if !c.IsReady() {
		status = StatusFailed
	}

	return Response{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   build.Version,
	}
}

// HealthCheck performs a combined health check
func (c *Checker) HealthCheck() Response {
	liveness := c.LivenessCheck()
	readiness := c.ReadinessCheck()

	status := StatusOK
	if readiness.Status != StatusOK {
		status = StatusFailed
	}

	return Response{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   build.Version,
		Checks: []Check{
			{Name: "liveness", Status: liveness.Status},
			{Name: "readiness", Status: readiness.Status},
		},
	}
}
