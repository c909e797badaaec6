package orchestration

import (
	"context"
	"time"

	"github.com/lukamarin/cabin-core/core/contextstore"
	"github.com/lukamarin/cabin-core/core/vehicle"
)

// Component is the uniform lifecycle contract every collaborator exposes.
// HealthCheck is a bounded-time liveness probe; the health monitor enforces
// the bound, probes themselves only need to answer.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	HealthCheck(ctx context.Context) bool
}

// NLUResult is the understanding collaborator's verdict on one utterance.
type NLUResult struct {
	Intent     string
	Entities   map[string]any
	Confidence float64
}

// DialogueResponse is one generated turn: what to say, what to do, whether
// the conversation is over.
type DialogueResponse struct {
	SpeechResponse  string
	Commands        []vehicle.Command
	UIUpdate        map[string]any
	EndConversation bool
}

// ProactiveResponse is a system-initiated notification generated from a
// vehicle event. A nil response means the event does not warrant one.
type ProactiveResponse struct {
	Speech   string
	Commands []vehicle.Command
}

// SpeechInput captures user speech: wake-word detection polled by the
// steady-state loop, transcriptions delivered through the registered handler.
type SpeechInput interface {
	Component

	IsWakeWordDetected(ctx context.Context) bool
	SetTranscriptionHandler(handler func(transcript string, confidence float64))
}

// Understanding turns a transcription into intent and entities.
type Understanding interface {
	Component

	Process(ctx context.Context, text string) (NLUResult, error)
}

// Dialogue generates responses for user turns and decides whether vehicle
// events warrant proactive notifications.
type Dialogue interface {
	Component

	ProcessTurn(ctx context.Context, nlu NLUResult, conversation contextstore.ConversationContext) (DialogueResponse, error)
	CheckProactiveTrigger(ctx context.Context, eventType string, eventData map[string]any, conversation contextstore.ConversationContext) (*ProactiveResponse, error)
}

// SpeechOutput synthesizes and plays a spoken response. interrupt cuts off
// any speech already playing.
type SpeechOutput interface {
	Component

	Speak(ctx context.Context, text string, interrupt bool) error
}

// VehicleLink is the bridge to the vehicle: state snapshots, UI state, event
// subscription, and the command executors.
type VehicleLink interface {
	Component

	CurrentState(ctx context.Context) (map[string]any, error)
	SetUIState(ctx context.Context, state vehicle.UIState) error
	UpdateUI(ctx context.Context, update map[string]any) error
	SubscribeToEvents(handler func(eventType string, eventData map[string]any))

	SetClimate(ctx context.Context, params vehicle.ClimateControlParams) error
	SetNavigationDestination(ctx context.Context, params vehicle.NavigationParams) error
	ControlMedia(ctx context.Context, params vehicle.MediaParams) error
	UpdateSettings(ctx context.Context, params vehicle.SettingsParams) error
}

// Telemetry is a sink-only collaborator. Implementations that additionally
// satisfy [Component] take part in lifecycle and health management.
type Telemetry interface {
	LogEvent(name string, payload map[string]any)
	LogInteraction(input string, nlu NLUResult, response DialogueResponse)
}

// IntegrityVerifier gates startup. A verification error is fatal and is
// never retried.
type IntegrityVerifier interface {
	VerifySystemIntegrity(ctx context.Context) error
}

// Config carries the orchestrator's numeric knobs. The zero value is usable;
// zero fields fall back to the stated defaults.
type Config struct {
	// HistoryWindow bounds conversation history kept in the context store.
	// Default 5.
	HistoryWindow int
	// ContextTTL resets an untouched context to defaults. Default 30m.
	ContextTTL time.Duration
	// ConfidenceThreshold is the minimum transcription confidence accepted
	// for processing. Default 0.7.
	ConfidenceThreshold float64
	// ProbeTimeout bounds each health probe. Default 2s.
	ProbeTimeout time.Duration
	// RestartAttempts is the per-component restart budget during recovery.
	// Default 1.
	RestartAttempts int
	// TickInterval paces the steady-state loop. Default 100ms.
	TickInterval time.Duration
	// ErrorBackoff is slept after a non-critical loop error. Default 1s.
	ErrorBackoff time.Duration
}

const (
	defaultConfidenceThreshold = 0.7
	defaultProbeTimeout        = 2 * time.Second
	defaultRestartAttempts     = 1
	defaultTickInterval        = 100 * time.Millisecond
	defaultErrorBackoff        = time.Second
)

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = contextstore.DefaultHistoryWindow
	}
	if c.ContextTTL <= 0 {
		c.ContextTTL = contextstore.DefaultTTL
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.RestartAttempts <= 0 {
		c.RestartAttempts = defaultRestartAttempts
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = defaultErrorBackoff
	}
	return c
}

type OrchestratorOption func(*Orchestrator)

func WithConfig(config Config) OrchestratorOption {
	return func(o *Orchestrator) { o.config = config.withDefaults() }
}

func WithSpeechInput(client SpeechInput) OrchestratorOption {
	return func(o *Orchestrator) { o.speechInput.set(client) }
}

func WithUnderstanding(client Understanding) OrchestratorOption {
	return func(o *Orchestrator) { o.understanding = client }
}

func WithDialogue(client Dialogue) OrchestratorOption {
	return func(o *Orchestrator) { o.dialogue = client }
}

func WithSpeechOutput(client SpeechOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.speechOutput.set(client) }
}

func WithVehicleLink(client VehicleLink) OrchestratorOption {
	return func(o *Orchestrator) { o.vehicleLink.set(client) }
}

func WithTelemetry(sink Telemetry) OrchestratorOption {
	return func(o *Orchestrator) { o.telemetry.set(sink) }
}

func WithIntegrityVerifier(verifier IntegrityVerifier) OrchestratorOption {
	return func(o *Orchestrator) { o.integrity = verifier }
}

// WithContextStore injects a pre-built store, e.g. one shared with an
// embedding application. By default the orchestrator builds its own from the
// configured window and TTL.
func WithContextStore(store *contextstore.Store) OrchestratorOption {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

// RunOptions collects the observation callbacks an embedding client (the
// head unit UI, tests) can attach to a run.
type RunOptions struct {
	onStateChanged          func(state SessionState)
	onTranscription         func(transcript string, confidence float64)
	onResponse              func(response string)
	onCommandExecuted       func(command vehicle.Command, err error)
	onProactiveNotification func(eventType, speech string)
}

type RunOption func(*RunOptions)

// WithStateChangedCallback registers a callback invoked on every
// state-machine transition, including the transition into the same state.
func WithStateChangedCallback(callback func(state SessionState)) RunOption {
	return func(o *RunOptions) { o.onStateChanged = callback }
}

func WithTranscriptionCallback(callback func(transcript string, confidence float64)) RunOption {
	return func(o *RunOptions) { o.onTranscription = callback }
}

func WithResponseCallback(callback func(response string)) RunOption {
	return func(o *RunOptions) { o.onResponse = callback }
}

// WithCommandExecutedCallback registers a callback invoked once per executed
// vehicle command, with the execution error if any.
func WithCommandExecutedCallback(callback func(command vehicle.Command, err error)) RunOption {
	return func(o *RunOptions) { o.onCommandExecuted = callback }
}

func WithProactiveNotificationCallback(callback func(eventType, speech string)) RunOption {
	return func(o *RunOptions) { o.onProactiveNotification = callback }
}
