package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lukamarin/cabin-core/core/contextstore"
	"github.com/lukamarin/cabin-core/core/events"
	"github.com/lukamarin/cabin-core/core/vehicle"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SessionState is the conversation machine's current mode.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateListening  SessionState = "listening"
	StateProcessing SessionState = "processing"
	StateSpeaking   SessionState = "speaking"
)

// Spoken prompts for acknowledgement and turn-level failures.
const (
	acknowledgePrompt   = "I'm listening"
	clarificationPrompt = "I didn't catch that. Could you please repeat?"
	apologyPrompt       = "I'm sorry, I encountered an error. Please try again."
)

// ConversationSession is the transient record of one active conversation.
// It is discarded, not persisted, when the conversation ends.
type ConversationSession struct {
	ID        string
	StartedAt time.Time
	Turns     int
	Active    bool
}

const triggerQueueCapacity = 16

type queuedTrigger struct {
	event    events.Event
	queuedAt time.Time
}

// stateMachine serializes every conversation transition through a single
// consumer goroutine. A trigger arriving while a transition is in flight
// waits in the queue and is evaluated against the post-transition state.
// Nothing outside the consumer mutates state or session.
type stateMachine struct {
	baseContext context.Context

	store         *contextstore.Store
	understanding Understanding
	dialogue      Dialogue
	speechOutput  *speechOutputFacade
	vehicleLink   *vehicleLinkFacade
	telemetry     *telemetryFacade
	commands      *commandQueue
	emit          eventEmitter

	confidenceThreshold float64

	queue   chan queuedTrigger
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once
	started   atomic.Bool

	mu      sync.RWMutex
	state   SessionState
	session ConversationSession
}

func newStateMachine(o *Orchestrator) *stateMachine {
	return &stateMachine{
		baseContext:         context.Background(),
		store:               o.store,
		understanding:       o.understanding,
		dialogue:            o.dialogue,
		speechOutput:        &o.speechOutput,
		vehicleLink:         &o.vehicleLink,
		telemetry:           &o.telemetry,
		commands:            o.commands,
		emit:                noopEventEmitter,
		confidenceThreshold: o.config.ConfidenceThreshold,
		state:               StateIdle,
		queue:               make(chan queuedTrigger, triggerQueueCapacity),
		closeCh:             make(chan struct{}),
		done:                make(chan struct{}),
	}
}

func (m *stateMachine) configure(ctx context.Context, emit eventEmitter) {
	if m == nil {
		return
	}

	m.baseContext = ctx
	if emit != nil {
		m.emit = emit
	}
}

func (m *stateMachine) start() (started bool) {
	m.startOnce.Do(func() {
		if m.isClosed() {
			return
		}

		started = true
		m.started.Store(true)
		go func() {
			defer close(m.done)

			for {
				select {
				case <-m.closeCh:
					return
				case queued := <-m.queue:
					if m.isClosed() {
						return
					}
					m.processQueuedTrigger(queued)
				}
			}
		}()
	})

	return started
}

func (m *stateMachine) end() {
	m.endOnce.Do(func() {
		close(m.closeCh)
	})
}

func (m *stateMachine) awaitCompletion() {
	if m.started.Load() {
		<-m.done
	}
}

func (m *stateMachine) isClosed() bool {
	select {
	case <-m.closeCh:
		return true
	default:
		return false
	}
}

// enqueue hands a trigger to the consumer. Returns false once the machine is
// shut down.
func (m *stateMachine) enqueue(event events.Event) bool {
	if m.isClosed() {
		return false
	}

	queued := queuedTrigger{event: event, queuedAt: time.Now()}
	select {
	case <-m.closeCh:
		return false
	case m.queue <- queued:
		return true
	}
}

// State returns the machine's current mode.
func (m *stateMachine) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns a point-in-time copy of the active session record.
func (m *stateMachine) Session() ConversationSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *stateMachine) setState(state SessionState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	m.emit(events.NewStateChanged(string(state)))
}

func (m *stateMachine) processQueuedTrigger(queued queuedTrigger) {
	triggerCtx, triggerCancel := context.WithCancel(m.baseContext)
	defer triggerCancel()

	go func() {
		select {
		case <-m.closeCh:
			triggerCancel()
		case <-triggerCtx.Done():
		}
	}()

	ctx, span := tracer.Start(triggerCtx, "process trigger")
	defer span.End()

	queuedTime := time.Since(queued.queuedAt).Seconds()
	span.AddEvent("taken out of queue", trace.WithAttributes(attribute.Float64("trigger.queued_time", queuedTime)))
	span.SetAttributes(
		attribute.String("trigger.kind", string(queued.event.Kind())),
		attribute.String("session.state", string(m.State())),
	)

	switch event := queued.event.(type) {
	case events.WakeDetected:
		m.handleWake(ctx)
	case events.TranscriptionReceived:
		m.handleTranscription(ctx, event)
	case events.ProactiveNotification:
		m.speakProactive(ctx, event)
	default:
		span.RecordError(fmt.Errorf("skipped trigger of unknown type: %T", queued.event))
	}
}

// handleWake starts a conversation session. A wake word heard while already
// listening, processing or speaking is ignored.
func (m *stateMachine) handleWake(ctx context.Context) {
	if m.State() != StateIdle {
		return
	}

	ctx, span := tracer.Start(ctx, "start conversation")
	defer span.End()

	m.mu.Lock()
	m.session = ConversationSession{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Active:    true,
	}
	sessionID := m.session.ID
	m.mu.Unlock()
	span.SetAttributes(attribute.String("session.id", sessionID))

	m.setState(StateListening)
	m.setUIState(ctx, vehicle.UIStateListening)
	if err := m.speechOutput.Speak(ctx, acknowledgePrompt, true); err != nil {
		span.RecordError(fmt.Errorf("failed to acknowledge wake word: %w", err))
	}

	m.telemetry.LogEvent("conversation_start", map[string]any{
		"session_id": sessionID,
		"context":    m.store.Summary(),
	})
}

// handleTranscription runs one user turn end to end. Only the Listening
// state accepts transcriptions; every other state drops them.
func (m *stateMachine) handleTranscription(ctx context.Context, event events.TranscriptionReceived) {
	if m.State() != StateListening {
		return
	}

	ctx, span := tracer.Start(ctx, "process user turn")
	defer span.End()
	span.SetAttributes(attribute.Float64("transcription.confidence", event.Confidence))

	m.emit(event)

	if event.Confidence < m.confidenceThreshold {
		span.AddEvent("transcription below confidence threshold")
		if err := m.speechOutput.Speak(ctx, clarificationPrompt, false); err != nil {
			span.RecordError(fmt.Errorf("failed to ask for clarification: %w", err))
		}
		return
	}

	m.setState(StateProcessing)
	m.setUIState(ctx, vehicle.UIStateProcessing)

	endConversation, err := m.runTurn(ctx, event.Transcript)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "turn processing failed", "error", err)

		if speakErr := m.speechOutput.Speak(ctx, apologyPrompt, false); speakErr != nil {
			span.RecordError(fmt.Errorf("failed to apologize: %w", speakErr))
		}
		m.setState(StateListening)
		m.setUIState(ctx, vehicle.UIStateListening)
		return
	}

	if endConversation {
		m.endSession(ctx)
	} else {
		m.setState(StateListening)
		m.setUIState(ctx, vehicle.UIStateListening)
	}
}

// runTurn is the Processing half of a turn: understanding, dialogue,
// commands, speech, context updates. It reports whether the dialogue asked
// to end the conversation.
func (m *stateMachine) runTurn(ctx context.Context, transcript string) (endConversation bool, err error) {
	if m.understanding == nil || m.dialogue == nil {
		return false, fmt.Errorf("understanding and dialogue collaborators are required to process a turn")
	}

	nlu, err := m.understanding.Process(ctx, transcript)
	if err != nil {
		return false, fmt.Errorf("understanding failed: %w", err)
	}

	conversation := m.store.Read()
	response, err := m.dialogue.ProcessTurn(ctx, nlu, conversation)
	if err != nil {
		return false, fmt.Errorf("dialogue failed: %w", err)
	}

	// Commands attached to the response execute before anything is spoken,
	// so "done" is only ever said about something that happened.
	for _, result := range m.commands.executeAll(ctx, response.Commands) {
		if result.Err != nil {
			return false, fmt.Errorf("command execution failed: %w", result.Err)
		}
	}

	m.setState(StateSpeaking)
	m.setUIState(ctx, vehicle.UIStateSpeaking)
	m.emit(events.NewResponseGenerated(response.SpeechResponse))
	if err := m.speechOutput.Speak(ctx, response.SpeechResponse, false); err != nil {
		return false, fmt.Errorf("speech output failed: %w", err)
	}

	if response.UIUpdate != nil {
		if err := m.vehicleLink.UpdateUI(ctx, response.UIUpdate); err != nil {
			trace.SpanFromContext(ctx).RecordError(fmt.Errorf("failed to push UI update: %w", err))
		}
	}

	m.recordTurn(ctx, transcript, nlu, response)
	m.telemetry.LogInteraction(transcript, nlu, response)

	m.mu.Lock()
	m.session.Turns++
	m.mu.Unlock()

	return response.EndConversation, nil
}

// recordTurn appends the exchange to conversation history and folds the
// turn's intent and entities into the shared context.
func (m *stateMachine) recordTurn(ctx context.Context, transcript string, nlu NLUResult, response DialogueResponse) {
	now := time.Now()
	m.store.AppendTurn(contextstore.Turn{
		Timestamp: now,
		Speaker:   "user",
		Text:      transcript,
		Intent:    nlu.Intent,
		Entities:  nlu.Entities,
	})
	m.store.AppendTurn(contextstore.Turn{
		Timestamp: now,
		Speaker:   "assistant",
		Text:      response.SpeechResponse,
	})

	if err := m.store.Update(contextstore.Update{
		CurrentIntent: &nlu.Intent,
		Entities:      nlu.Entities,
	}); err != nil {
		trace.SpanFromContext(ctx).RecordError(fmt.Errorf("failed to update context after turn: %w", err))
	}
}

// speakProactive delivers a vehicle-triggered notification. The consumer
// serializes triggers, so a notification raised while a turn is in flight is
// not processed until that turn settles, whatever its outcome; between turns
// and while idle it is delivered right away.
func (m *stateMachine) speakProactive(ctx context.Context, event events.ProactiveNotification) {
	ctx, span := tracer.Start(ctx, "proactive notification")
	defer span.End()
	span.SetAttributes(attribute.String("vehicle.event_type", event.EventType))

	// Remember where to settle afterwards: an interrupting notification
	// returns to Idle, one delivered between turns resumes Listening.
	resumeListening := m.Session().Active

	m.setState(StateSpeaking)
	m.setUIState(ctx, vehicle.UIStateSpeaking)
	m.emit(event)

	if err := m.speechOutput.Speak(ctx, event.Speech, true); err != nil {
		span.RecordError(fmt.Errorf("failed to speak proactive notification: %w", err))
		span.SetStatus(codes.Error, err.Error())
	}

	for _, result := range m.commands.executeAll(ctx, event.Commands) {
		if result.Err != nil {
			span.RecordError(fmt.Errorf("proactive command failed: %w", result.Err))
		}
	}

	m.telemetry.LogEvent("proactive_notification", map[string]any{
		"event_type": event.EventType,
		"speech":     event.Speech,
	})

	if resumeListening {
		m.setState(StateListening)
		m.setUIState(ctx, vehicle.UIStateListening)
	} else {
		m.setState(StateIdle)
		m.setUIState(ctx, vehicle.UIStateIdle)
	}
}

// endSession closes the active conversation and returns the machine to its
// resting state.
func (m *stateMachine) endSession(ctx context.Context) {
	m.mu.Lock()
	session := m.session
	m.session = ConversationSession{}
	m.mu.Unlock()

	if session.Active {
		m.telemetry.LogEvent("conversation_end", map[string]any{
			"session_id":       session.ID,
			"turn_count":       session.Turns,
			"duration_seconds": time.Since(session.StartedAt).Seconds(),
		})
		m.emit(events.NewSessionEnded(session.ID, session.Turns))
	}

	m.setState(StateIdle)
	m.setUIState(ctx, vehicle.UIStateIdle)
}

func (m *stateMachine) setUIState(ctx context.Context, state vehicle.UIState) {
	if err := m.vehicleLink.SetUIState(ctx, state); err != nil {
		trace.SpanFromContext(ctx).RecordError(fmt.Errorf("failed to set UI state to %s: %w", state, err))
	}
}
