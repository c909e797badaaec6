// Package orchestration coordinates speech capture, understanding, dialogue
// generation, speech synthesis and vehicle-event handling into a single
// in-vehicle conversation session. Collaborators are injected behind narrow
// contracts; the package owns the conversation state machine, component
// lifecycle and health, proactive event dispatch, and the shared context
// store.
package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lukamarin/cabin-core/core/contextstore"
	"go.opentelemetry.io/otel/codes"
)

type Orchestrator struct {
	config Config
	store  *contextstore.Store

	speechInput   speechInputFacade
	understanding Understanding
	dialogue      Dialogue
	speechOutput  speechOutputFacade
	vehicleLink   vehicleLinkFacade
	telemetry     telemetryFacade
	integrity     IntegrityVerifier

	components *componentSet
	health     *healthMonitor
	recovery   *recoveryManager
	commands   *commandQueue
	machine    *stateMachine

	runOptions  RunOptions
	baseContext context.Context

	active       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		config:      Config{}.withDefaults(),
		baseContext: context.Background(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		o.store = contextstore.New(
			contextstore.WithHistoryWindow(o.config.HistoryWindow),
			contextstore.WithTTL(o.config.ContextTTL),
		)
	}

	o.components = o.buildComponentSet()
	o.health = newHealthMonitor(o.components, o.config.ProbeTimeout)
	o.recovery = newRecoveryManager(o.components, o.config.RestartAttempts, o.config.ProbeTimeout)
	o.commands = newCommandQueue(&o.vehicleLink)
	o.machine = newStateMachine(o)

	return o
}

// buildComponentSet registers configured collaborators in startup order;
// shutdown walks the same order in reverse. A telemetry sink only takes part
// when it implements the lifecycle contract.
func (o *Orchestrator) buildComponentSet() *componentSet {
	components := &componentSet{}
	components.register(ComponentSpeechInput, o.speechInput.client)
	if o.understanding != nil {
		components.register(ComponentUnderstanding, o.understanding)
	}
	if o.dialogue != nil {
		components.register(ComponentDialogue, o.dialogue)
	}
	components.register(ComponentSpeechOutput, o.speechOutput.client)
	components.register(ComponentVehicleLink, o.vehicleLink.client)
	if component, ok := o.telemetry.sink.(Component); ok {
		components.register(ComponentTelemetry, component)
	}
	return components
}

// Run starts the system and blocks in the steady-state loop until ctx is
// cancelled or a critical fault forces emergency shutdown.
//
// Contract: call Run at most once per orchestrator instance.
func (o *Orchestrator) Run(ctx context.Context, opts ...RunOption) error {
	if o.machine.isClosed() {
		return ErrNotRunning
	}

	o.runOptions = RunOptions{}
	for _, opt := range opts {
		opt(&o.runOptions)
	}
	emit := newCallbackEventEmitter(o.runOptions)

	o.baseContext = ctx
	o.machine.configure(ctx, emit)
	o.commands.setEventEmitter(emit)

	if err := o.startup(ctx); err != nil {
		return err
	}

	err := o.runLoop(ctx)
	if err != nil {
		o.emergencyShutdown(err)
		return err
	}

	return o.Shutdown(context.WithoutCancel(o.baseContext))
}

// startup is the boot sequence: integrity gate, concurrent component start,
// health check, recovery if needed. Any failure past the integrity gate
// tears down whatever was started.
func (o *Orchestrator) startup(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "system startup")
	defer span.End()

	if o.integrity != nil {
		if err := o.integrity.VerifySystemIntegrity(ctx); err != nil {
			err = fmt.Errorf("%w: %v", ErrIntegrityCheckFailed, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := o.components.startAll(ctx); err != nil {
		err = fmt.Errorf("component startup failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.emergencyShutdown(err)
		return err
	}

	o.vehicleLink.SubscribeToEvents(o.OnVehicleEvent)
	o.speechInput.SetTranscriptionHandler(o.OnTranscription)

	health := o.health.checkAll(ctx)
	o.telemetry.LogEvent("health_check", health.telemetryPayload())
	if !health.Healthy() {
		result := o.recovery.recover(ctx, health.Failed())
		if !result.FullyRecovered {
			err := fmt.Errorf("%w: %v", ErrRecoveryFailed, result.Components)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.emergencyShutdown(err)
			return err
		}
	}

	o.machine.start()
	o.commands.start()
	o.active.Store(true)
	o.telemetry.LogEvent("system_start", map[string]any{"status": "success"})

	return nil
}

// Shutdown stops the system: no new triggers are accepted, components stop
// in strict reverse-of-start order, and the machine and command-executor
// workers are released last. Safe to call more than once; later calls return
// the first shutdown's result.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.shutdownOnce.Do(func() {
		ctx, span := tracer.Start(ctx, "system shutdown")
		defer span.End()

		o.active.Store(false)
		o.machine.end()
		o.commands.end()

		if err := o.components.stopAll(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.shutdownErr = err
		}

		o.machine.awaitCompletion()
		o.commands.awaitCompletion()
	})

	return o.shutdownErr
}

func (o *Orchestrator) emergencyShutdown(cause error) {
	o.telemetry.LogEvent("emergency_shutdown", map[string]any{"reason": cause.Error()})
	// The run context may already be cancelled; shut down on a fresh one so
	// components still get their stop calls.
	if err := o.Shutdown(context.WithoutCancel(o.baseContext)); err != nil {
		logger.Error("emergency shutdown finished with errors", "error", err)
	}
}

// IsActive reports whether startup completed and shutdown has not begun.
func (o *Orchestrator) IsActive() bool { return o.active.Load() }

// State returns the conversation machine's current mode.
func (o *Orchestrator) State() SessionState { return o.machine.State() }

// Session returns a point-in-time copy of the active conversation session.
func (o *Orchestrator) Session() ConversationSession { return o.machine.Session() }

// Conversation returns a consistent snapshot of the shared context.
func (o *Orchestrator) Conversation() contextstore.ConversationContext { return o.store.Read() }

// Health returns the most recent health-check results.
func (o *Orchestrator) Health() ComponentHealth { return o.health.lastHealth() }

// CheckHealth probes every component now and returns the fresh results.
func (o *Orchestrator) CheckHealth(ctx context.Context) ComponentHealth {
	health := o.health.checkAll(ctx)
	o.telemetry.LogEvent("health_check", health.telemetryPayload())
	return health
}

// IsSystemHealthy reports the most recent check cycle's verdict.
func (o *Orchestrator) IsSystemHealthy() bool { return o.health.isSystemHealthy() }
