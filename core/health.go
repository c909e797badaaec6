package orchestration

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// HealthState is a component's reported liveness.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthFailed   HealthState = "failed"
)

// ComponentStatus is one component's most recent probe outcome.
type ComponentStatus struct {
	State     HealthState
	CheckedAt time.Time
}

// ComponentHealth maps component names to their probe outcomes.
type ComponentHealth map[string]ComponentStatus

// Healthy reports whether every component probe answered healthy.
func (h ComponentHealth) Healthy() bool {
	for _, status := range h {
		if status.State != HealthHealthy {
			return false
		}
	}
	return true
}

// Failed lists the components that did not answer healthy.
func (h ComponentHealth) Failed() []string {
	failed := []string{}
	for name, status := range h {
		if status.State != HealthHealthy {
			failed = append(failed, name)
		}
	}
	return failed
}

// healthMonitor fans probe calls out across all registered components so one
// slow probe bounds a check cycle's wall-clock cost instead of summing into
// it. A probe that misses its deadline is recorded as failed.
type healthMonitor struct {
	components   *componentSet
	probeTimeout time.Duration

	mu   sync.RWMutex
	last ComponentHealth
}

func newHealthMonitor(components *componentSet, probeTimeout time.Duration) *healthMonitor {
	return &healthMonitor{components: components, probeTimeout: probeTimeout}
}

func (m *healthMonitor) checkAll(ctx context.Context) ComponentHealth {
	ctx, span := tracer.Start(ctx, "health check")
	defer span.End()

	health := ComponentHealth{}
	healthMu := sync.Mutex{}

	wg := &sync.WaitGroup{}
	for _, component := range m.components.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := m.probe(ctx, component)
			healthMu.Lock()
			health[component.name] = status
			healthMu.Unlock()
		}()
	}
	wg.Wait()

	span.SetAttributes(
		attribute.Bool("health.all_healthy", health.Healthy()),
		attribute.StringSlice("health.failed", health.Failed()),
	)

	m.mu.Lock()
	m.last = health
	m.mu.Unlock()

	return health
}

// probe runs one component's health check with the configured bound. The
// probe call itself may not honor cancellation, so the deadline is enforced
// from outside it.
func (m *healthMonitor) probe(ctx context.Context, component namedComponent) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	answered := make(chan bool, 1)
	go func() {
		answered <- component.HealthCheck(ctx)
	}()

	select {
	case healthy := <-answered:
		state := HealthFailed
		if healthy {
			state = HealthHealthy
		}
		return ComponentStatus{State: state, CheckedAt: time.Now()}
	case <-ctx.Done():
		return ComponentStatus{State: HealthFailed, CheckedAt: time.Now()}
	}
}

// isSystemHealthy reports the most recent check cycle's verdict.
func (m *healthMonitor) isSystemHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.last == nil {
		return false
	}
	return m.last.Healthy()
}

func (m *healthMonitor) lastHealth() ComponentHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := ComponentHealth{}
	for name, status := range m.last {
		health[name] = status
	}
	return health
}

func (h ComponentHealth) telemetryPayload() map[string]any {
	status := map[string]any{}
	for name, componentStatus := range h {
		status[name] = string(componentStatus.State)
	}
	return map[string]any{"status": status, "all_healthy": h.Healthy()}
}
