package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/lukamarin/cabin-core/core/contextstore"
	"github.com/lukamarin/cabin-core/core/events"
)

// runLoop is the steady-state loop: once per tick it refreshes vehicle state
// into the context store and, while idle, polls for the wake word. Errors
// are classified at the loop boundary; non-critical ones are logged and the
// loop continues after a short backoff.
func (o *Orchestrator) runLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.machine.closeCh:
			return nil
		case <-ticker.C:
			err := o.tick(ctx)
			if err == nil {
				continue
			}
			if isCancellation(err) {
				return nil
			}
			if IsCritical(err) {
				return err
			}

			logger.ErrorContext(ctx, "steady-state loop error", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(o.config.ErrorBackoff):
			}
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) error {
	state, err := o.vehicleLink.CurrentState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read vehicle state: %w", err)
	}
	if len(state) > 0 {
		if err := o.store.Update(contextstore.Update{VehicleState: state}); err != nil {
			return fmt.Errorf("failed to refresh vehicle state: %w", err)
		}
	}

	if o.machine.State() == StateIdle && o.speechInput.IsWakeWordDetected(ctx) {
		o.machine.enqueue(events.NewWakeDetected())
	}

	return nil
}
