package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukamarin/cabin-core/core/contextstore"
	"github.com/lukamarin/cabin-core/core/vehicle"
)

var testConfig = Config{
	TickInterval:        5 * time.Millisecond,
	ErrorBackoff:        time.Millisecond,
	ProbeTimeout:        200 * time.Millisecond,
	RestartAttempts:     2,
	ConfidenceThreshold: 0.7,
}

func waitFor(t *testing.T, condition func() bool, description string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

type lifecycleStub struct {
	startErr   error
	restartErr error

	unhealthy     atomic.Bool
	healOnRestart bool
	blockRestart  time.Duration
	blockProbe    time.Duration

	startCalls   atomic.Int32
	stopCalls    atomic.Int32
	restartCalls atomic.Int32
}

func (s *lifecycleStub) Start(ctx context.Context) error {
	s.startCalls.Add(1)
	return s.startErr
}

func (s *lifecycleStub) Stop(ctx context.Context) error {
	s.stopCalls.Add(1)
	return nil
}

func (s *lifecycleStub) Restart(ctx context.Context) error {
	s.restartCalls.Add(1)
	if s.blockRestart > 0 {
		time.Sleep(s.blockRestart)
	}
	if s.restartErr != nil {
		return s.restartErr
	}
	if s.healOnRestart {
		s.unhealthy.Store(false)
	}
	return nil
}

func (s *lifecycleStub) HealthCheck(ctx context.Context) bool {
	if s.blockProbe > 0 {
		time.Sleep(s.blockProbe)
	}
	return !s.unhealthy.Load()
}

type speechInputStub struct {
	lifecycleStub

	wake atomic.Bool

	handlerMu sync.Mutex
	handler   func(transcript string, confidence float64)
}

func (s *speechInputStub) IsWakeWordDetected(ctx context.Context) bool {
	return s.wake.Swap(false)
}

func (s *speechInputStub) SetTranscriptionHandler(handler func(transcript string, confidence float64)) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

type understandingStub struct {
	lifecycleStub

	result NLUResult
	err    error
	calls  atomic.Int32
}

func (s *understandingStub) Process(ctx context.Context, text string) (NLUResult, error) {
	s.calls.Add(1)
	return s.result, s.err
}

type dialogueStub struct {
	lifecycleStub

	mu           sync.Mutex
	response     DialogueResponse
	err          error
	proactive    *ProactiveResponse
	proactiveErr error

	turnCalls atomic.Int32
}

func (s *dialogueStub) ProcessTurn(ctx context.Context, nlu NLUResult, conversation contextstore.ConversationContext) (DialogueResponse, error) {
	s.turnCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response, s.err
}

func (s *dialogueStub) CheckProactiveTrigger(ctx context.Context, eventType string, eventData map[string]any, conversation contextstore.ConversationContext) (*ProactiveResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proactive, s.proactiveErr
}

type speechOutputStub struct {
	lifecycleStub

	speakErr error

	mu     sync.Mutex
	spoken []string
}

func (s *speechOutputStub) Speak(ctx context.Context, text string, interrupt bool) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	return s.speakErr
}

func (s *speechOutputStub) spokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *speechOutputStub) spokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}

func (s *speechOutputStub) hasSpoken(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spoken := range s.spoken {
		if spoken == text {
			return true
		}
	}
	return false
}

type vehicleLinkStub struct {
	lifecycleStub

	commandErr error

	mu          sync.Mutex
	state       map[string]any
	climate     []vehicle.ClimateControlParams
	navigations []vehicle.NavigationParams
	media       []vehicle.MediaParams
	settings    []vehicle.SettingsParams
	uiStates    []vehicle.UIState
	uiUpdates   []map[string]any
	handler     func(eventType string, eventData map[string]any)
}

func (s *vehicleLinkStub) CurrentState(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := map[string]any{}
	for key, value := range s.state {
		state[key] = value
	}
	return state, nil
}

func (s *vehicleLinkStub) SetUIState(ctx context.Context, state vehicle.UIState) error {
	s.mu.Lock()
	s.uiStates = append(s.uiStates, state)
	s.mu.Unlock()
	return nil
}

func (s *vehicleLinkStub) UpdateUI(ctx context.Context, update map[string]any) error {
	s.mu.Lock()
	s.uiUpdates = append(s.uiUpdates, update)
	s.mu.Unlock()
	return nil
}

func (s *vehicleLinkStub) SubscribeToEvents(handler func(eventType string, eventData map[string]any)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

func (s *vehicleLinkStub) SetClimate(ctx context.Context, params vehicle.ClimateControlParams) error {
	s.mu.Lock()
	s.climate = append(s.climate, params)
	s.mu.Unlock()
	return s.commandErr
}

func (s *vehicleLinkStub) SetNavigationDestination(ctx context.Context, params vehicle.NavigationParams) error {
	s.mu.Lock()
	s.navigations = append(s.navigations, params)
	s.mu.Unlock()
	return s.commandErr
}

func (s *vehicleLinkStub) ControlMedia(ctx context.Context, params vehicle.MediaParams) error {
	s.mu.Lock()
	s.media = append(s.media, params)
	s.mu.Unlock()
	return s.commandErr
}

func (s *vehicleLinkStub) UpdateSettings(ctx context.Context, params vehicle.SettingsParams) error {
	s.mu.Lock()
	s.settings = append(s.settings, params)
	s.mu.Unlock()
	return s.commandErr
}

func (s *vehicleLinkStub) climateCalls() []vehicle.ClimateControlParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vehicle.ClimateControlParams(nil), s.climate...)
}

type telemetryStub struct {
	mu           sync.Mutex
	events       []string
	interactions int
}

func (s *telemetryStub) LogEvent(name string, payload map[string]any) {
	s.mu.Lock()
	s.events = append(s.events, name)
	s.mu.Unlock()
}

func (s *telemetryStub) LogInteraction(input string, nlu NLUResult, response DialogueResponse) {
	s.mu.Lock()
	s.interactions++
	s.mu.Unlock()
}

func (s *telemetryStub) hasEvent(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event == name {
			return true
		}
	}
	return false
}

type integrityStub struct {
	err error
}

func (s integrityStub) VerifySystemIntegrity(ctx context.Context) error {
	return s.err
}

type testHarness struct {
	orchestrator  *Orchestrator
	speechInput   *speechInputStub
	understanding *understandingStub
	dialogue      *dialogueStub
	speechOutput  *speechOutputStub
	vehicleLink   *vehicleLinkStub
	telemetry     *telemetryStub
}

func newTestHarness(extra ...OrchestratorOption) *testHarness {
	h := &testHarness{
		speechInput:   &speechInputStub{},
		understanding: &understandingStub{},
		dialogue:      &dialogueStub{},
		speechOutput:  &speechOutputStub{},
		vehicleLink:   &vehicleLinkStub{state: map[string]any{"speed": 0.0}},
		telemetry:     &telemetryStub{},
	}

	opts := []OrchestratorOption{
		WithConfig(testConfig),
		WithSpeechInput(h.speechInput),
		WithUnderstanding(h.understanding),
		WithDialogue(h.dialogue),
		WithSpeechOutput(h.speechOutput),
		WithVehicleLink(h.vehicleLink),
		WithTelemetry(h.telemetry),
	}
	opts = append(opts, extra...)

	h.orchestrator = NewOrchestrator(opts...)
	return h
}

// run starts the orchestrator in the background and blocks until it reports
// active. Shutdown is wired into test cleanup.
func (h *testHarness) run(t *testing.T, opts ...RunOption) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.orchestrator.Run(ctx, opts...)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for orchestrator to shut down")
		}
	})

	waitFor(t, h.orchestrator.IsActive, "orchestrator to become active")
}
