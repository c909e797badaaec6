package orchestration

import (
	"context"

	"github.com/lukamarin/cabin-core/core/vehicle"
)

// Facades normalize optional collaborator wiring: a facade with no client
// configured answers no-ops so the orchestrator never branches on nil
// collaborators mid-flow.

type speechInputFacade struct {
	client SpeechInput
}

func (s *speechInputFacade) set(client SpeechInput) {
	if s != nil {
		s.client = client
	}
}

func (s *speechInputFacade) isConfigured() bool {
	return s != nil && s.client != nil
}

func (s *speechInputFacade) IsWakeWordDetected(ctx context.Context) bool {
	if !s.isConfigured() {
		return false
	}
	return s.client.IsWakeWordDetected(ctx)
}

func (s *speechInputFacade) SetTranscriptionHandler(handler func(transcript string, confidence float64)) {
	if !s.isConfigured() {
		return
	}
	s.client.SetTranscriptionHandler(handler)
}

type speechOutputFacade struct {
	client SpeechOutput
}

func (s *speechOutputFacade) set(client SpeechOutput) {
	if s != nil {
		s.client = client
	}
}

func (s *speechOutputFacade) isConfigured() bool {
	return s != nil && s.client != nil
}

func (s *speechOutputFacade) Speak(ctx context.Context, text string, interrupt bool) error {
	if !s.isConfigured() || text == "" {
		return nil
	}
	return s.client.Speak(ctx, text, interrupt)
}

type vehicleLinkFacade struct {
	client VehicleLink
}

func (v *vehicleLinkFacade) set(client VehicleLink) {
	if v != nil {
		v.client = client
	}
}

func (v *vehicleLinkFacade) isConfigured() bool {
	return v != nil && v.client != nil
}

func (v *vehicleLinkFacade) CurrentState(ctx context.Context) (map[string]any, error) {
	if !v.isConfigured() {
		return nil, nil
	}
	return v.client.CurrentState(ctx)
}

func (v *vehicleLinkFacade) SetUIState(ctx context.Context, state vehicle.UIState) error {
	if !v.isConfigured() {
		return nil
	}
	return v.client.SetUIState(ctx, state)
}

func (v *vehicleLinkFacade) UpdateUI(ctx context.Context, update map[string]any) error {
	if !v.isConfigured() {
		return nil
	}
	return v.client.UpdateUI(ctx, update)
}

func (v *vehicleLinkFacade) SubscribeToEvents(handler func(eventType string, eventData map[string]any)) {
	if !v.isConfigured() {
		return
	}
	v.client.SubscribeToEvents(handler)
}

func (v *vehicleLinkFacade) SetClimate(ctx context.Context, params vehicle.ClimateControlParams) error {
	if !v.isConfigured() {
		return nil
	}
	return v.client.SetClimate(ctx, params)
}

func (v *vehicleLinkFacade) SetNavigationDestination(ctx context.Context, params vehicle.NavigationParams) error {
	if !v.isConfigured() {
		return nil
	}
	return v.client.SetNavigationDestination(ctx, params)
}

func (v *vehicleLinkFacade) ControlMedia(ctx context.Context, params vehicle.MediaParams) error {
	if !v.isConfigured() {
		return nil
	}
	return v.client.ControlMedia(ctx, params)
}

func (v *vehicleLinkFacade) UpdateSettings(ctx context.Context, params vehicle.SettingsParams) error {
	if !v.isConfigured() {
		return nil
	}
	return v.client.UpdateSettings(ctx, params)
}

type telemetryFacade struct {
	sink Telemetry
}

func (t *telemetryFacade) set(sink Telemetry) {
	if t != nil {
		t.sink = sink
	}
}

func (t *telemetryFacade) isConfigured() bool {
	return t != nil && t.sink != nil
}

func (t *telemetryFacade) LogEvent(name string, payload map[string]any) {
	if !t.isConfigured() {
		return
	}
	t.sink.LogEvent(name, payload)
}

func (t *telemetryFacade) LogInteraction(input string, nlu NLUResult, response DialogueResponse) {
	if !t.isConfigured() {
		return
	}
	t.sink.LogInteraction(input, nlu, response)
}
