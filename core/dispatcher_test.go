package orchestration

import (
	"errors"
	"testing"
	"time"

	"github.com/lukamarin/cabin-core/core/vehicle"
)

func TestVehicleEventLandsInContext(t *testing.T) {
	h := newTestHarness()
	h.run(t)

	h.orchestrator.OnVehicleEvent("door_opened", map[string]any{"door": "driver"})

	waitFor(t, func() bool {
		state := h.orchestrator.Conversation().VehicleState
		return state["last_event"] == "door_opened" && state["door"] == "driver"
	}, "vehicle event in context")
}

func TestProactiveNotificationWhileIdleSpeaksAndReturnsToIdle(t *testing.T) {
	h := newTestHarness()
	h.dialogue.proactive = &ProactiveResponse{Speech: "Fuel is low, shall I find a station?"}

	notified := make(chan string, 1)
	h.run(t, WithProactiveNotificationCallback(func(eventType, speech string) {
		select {
		case notified <- eventType:
		default:
		}
	}))

	h.orchestrator.OnVehicleEvent("low_fuel", map[string]any{"level": 0.1})

	waitFor(t, func() bool { return h.speechOutput.hasSpoken("Fuel is low, shall I find a station?") }, "proactive speech")
	waitFor(t, func() bool { return h.orchestrator.State() == StateIdle }, "return to idle")

	select {
	case eventType := <-notified:
		if eventType != "low_fuel" {
			t.Fatalf("expected a low_fuel notification, got %s", eventType)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the proactive notification callback")
	}
	if !h.telemetry.hasEvent("proactive_notification") {
		t.Fatalf("expected proactive_notification telemetry")
	}
}

func TestProactiveNotificationExecutesCommands(t *testing.T) {
	h := newTestHarness()
	h.dialogue.proactive = &ProactiveResponse{
		Speech: "It is getting cold, warming the cabin",
		Commands: []vehicle.Command{{
			Type:       vehicle.CommandClimateControl,
			Parameters: map[string]any{"temperature": 22.0},
		}},
	}
	h.run(t)

	h.orchestrator.OnVehicleEvent("temperature_drop", map[string]any{"outside": -4.0})

	waitFor(t, func() bool { return len(h.vehicleLink.climateCalls()) == 1 }, "proactive climate command")
}

func TestProactiveNotificationWaitsForTurnInFlight(t *testing.T) {
	h := newTestHarness()
	h.understanding.result = NLUResult{Intent: "small_talk", Confidence: 0.95}
	h.dialogue.response = DialogueResponse{SpeechResponse: "Certainly"}
	h.dialogue.proactive = &ProactiveResponse{Speech: "Fuel is low"}
	h.run(t)

	h.orchestrator.OnWakeWord()
	waitFor(t, func() bool { return h.orchestrator.State() == StateListening }, "listening state")

	h.orchestrator.OnTranscription("tell me a joke", 0.95)
	h.orchestrator.OnVehicleEvent("low_fuel", map[string]any{"level": 0.1})

	waitFor(t, func() bool { return h.speechOutput.hasSpoken("Fuel is low") }, "notification after the turn")
	waitFor(t, func() bool { return h.orchestrator.State() == StateListening }, "resume listening")

	spoken := h.speechOutput.spokenTexts()
	response, notification := -1, -1
	for i, text := range spoken {
		switch text {
		case "Certainly":
			response = i
		case "Fuel is low":
			notification = i
		}
	}
	if response == -1 || notification < response {
		t.Fatalf("expected the turn response before the notification, got %v", spoken)
	}
}

func TestProactiveNotificationSurvivesFailedTurn(t *testing.T) {
	h := newTestHarness()
	h.understanding.err = errors.New("nlu backend unavailable")
	h.dialogue.proactive = &ProactiveResponse{Speech: "Fuel is low"}
	h.run(t)

	h.orchestrator.OnWakeWord()
	waitFor(t, func() bool { return h.orchestrator.State() == StateListening }, "listening state")

	h.orchestrator.OnTranscription("set temperature to 21", 0.95)
	h.orchestrator.OnVehicleEvent("low_fuel", map[string]any{"level": 0.1})

	waitFor(t, func() bool { return h.speechOutput.hasSpoken(apologyPrompt) }, "apology prompt")
	waitFor(t, func() bool { return h.speechOutput.hasSpoken("Fuel is low") }, "notification after the failed turn")
	waitFor(t, func() bool { return h.orchestrator.State() == StateListening }, "resume listening")
}

func TestProactiveNotificationBetweenTurnsDeliveredImmediately(t *testing.T) {
	h := newTestHarness()
	h.dialogue.proactive = &ProactiveResponse{Speech: "Fuel is low"}
	h.run(t)

	h.orchestrator.OnWakeWord()
	waitFor(t, func() bool { return h.orchestrator.State() == StateListening }, "listening state")

	h.orchestrator.OnVehicleEvent("low_fuel", map[string]any{"level": 0.1})

	waitFor(t, func() bool { return h.speechOutput.hasSpoken("Fuel is low") }, "immediate notification")
	waitFor(t, func() bool { return h.orchestrator.State() == StateListening }, "resume listening")
	if !h.orchestrator.Session().Active {
		t.Fatalf("expected the session to survive the notification")
	}
}

func TestUninterestingVehicleEventStaysQuiet(t *testing.T) {
	h := newTestHarness()
	h.run(t)

	h.orchestrator.OnVehicleEvent("wiper_speed_changed", map[string]any{"speed": 2})
	time.Sleep(50 * time.Millisecond)

	if h.orchestrator.State() != StateIdle {
		t.Fatalf("expected machine to stay idle, got %s", h.orchestrator.State())
	}
	if got := h.speechOutput.spokenCount(); got != 0 {
		t.Fatalf("expected no speech, got %d utterances", got)
	}
}

func TestProactiveTriggerErrorIsSwallowed(t *testing.T) {
	h := newTestHarness()
	h.dialogue.proactiveErr = errors.New("trigger model unavailable")
	h.run(t)

	h.orchestrator.OnVehicleEvent("low_fuel", map[string]any{"level": 0.1})
	time.Sleep(50 * time.Millisecond)

	if h.orchestrator.State() != StateIdle {
		t.Fatalf("expected machine to stay idle, got %s", h.orchestrator.State())
	}
	if !h.orchestrator.IsActive() {
		t.Fatalf("expected the system to stay active")
	}
}
