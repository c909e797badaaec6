package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecoveryResult collects per-component restart outcomes for one recovery
// cycle.
type RecoveryResult struct {
	// FullyRecovered is true iff every failed component reports healthy
	// again.
	FullyRecovered bool
	// Components maps each attempted component to its recovery outcome.
	Components map[string]bool
}

// recoveryManager restarts failed components within a bounded per-component
// budget. Independent components recover concurrently; a component that
// fails every attempt is terminally failed for the cycle and the
// orchestrator escalates to emergency shutdown.
type recoveryManager struct {
	components      *componentSet
	restartAttempts int
	probeTimeout    time.Duration
}

func newRecoveryManager(components *componentSet, restartAttempts int, probeTimeout time.Duration) *recoveryManager {
	return &recoveryManager{
		components:      components,
		restartAttempts: restartAttempts,
		probeTimeout:    probeTimeout,
	}
}

func (m *recoveryManager) recover(ctx context.Context, failed []string) RecoveryResult {
	ctx, span := tracer.Start(ctx, "recover components")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("recovery.failed_components", failed))

	result := RecoveryResult{FullyRecovered: true, Components: map[string]bool{}}
	resultMu := sync.Mutex{}

	wg := &sync.WaitGroup{}
	for _, name := range failed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recovered := m.recoverOne(ctx, name)
			resultMu.Lock()
			result.Components[name] = recovered
			if !recovered {
				result.FullyRecovered = false
			}
			resultMu.Unlock()
		}()
	}
	wg.Wait()

	span.SetAttributes(attribute.Bool("recovery.fully_recovered", result.FullyRecovered))
	if !result.FullyRecovered {
		err := fmt.Errorf("%w: %v", ErrRecoveryFailed, result.Components)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return result
}

func (m *recoveryManager) recoverOne(ctx context.Context, name string) bool {
	ctx, span := tracer.Start(ctx, "restart component")
	defer span.End()
	span.SetAttributes(attribute.String("component", name))

	component, ok := m.components.byName(name)
	if !ok {
		span.RecordError(fmt.Errorf("unknown component: %s", name))
		return false
	}

	for attempt := 1; attempt <= m.restartAttempts; attempt++ {
		span.AddEvent("restart attempt", trace.WithAttributes(attribute.Int("attempt", attempt)))

		if err := m.restartBounded(ctx, component); err != nil {
			span.RecordError(fmt.Errorf("restart attempt %d for %s failed: %w", attempt, name, err))
			continue
		}

		if m.probeHealthy(ctx, component) {
			return true
		}
		span.RecordError(fmt.Errorf("%s restarted but still unhealthy after attempt %d", name, attempt))
	}

	return false
}

// restartBounded enforces the probe timeout on the restart call as well; a
// hung restart counts as a failed attempt.
func (m *recoveryManager) restartBounded(ctx context.Context, component namedComponent) error {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	restarted := make(chan error, 1)
	go func() {
		restarted <- component.Restart(ctx)
	}()

	select {
	case err := <-restarted:
		return err
	case <-ctx.Done():
		return fmt.Errorf("restart timed out: %w", ctx.Err())
	}
}

func (m *recoveryManager) probeHealthy(ctx context.Context, component namedComponent) bool {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	answered := make(chan bool, 1)
	go func() {
		answered <- component.HealthCheck(ctx)
	}()

	select {
	case healthy := <-answered:
		return healthy
	case <-ctx.Done():
		return false
	}
}
