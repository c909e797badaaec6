package orchestration

import (
	"errors"
	"fmt"

	"github.com/lukamarin/cabin-core/core/contextstore"
	"github.com/lukamarin/cabin-core/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OnVehicleEvent routes an asynchronous vehicle-originated event. The event
// is always recorded into the context store; the dialogue collaborator then
// decides whether it warrants a proactive notification, which is handed to
// the state machine. The machine's trigger queue serializes the notification
// past any turn already in flight; otherwise it is delivered right away.
//
// Safe to call from any goroutine; the vehicle link invokes it from its
// event-subscription callback.
func (o *Orchestrator) OnVehicleEvent(eventType string, eventData map[string]any) {
	ctx, span := tracer.Start(o.baseContext, "vehicle event")
	defer span.End()
	span.SetAttributes(attribute.String("vehicle.event_type", eventType))

	if err := o.recordVehicleEvent(eventType, eventData); err != nil {
		// A malformed payload is a local schema fault: logged, prior
		// context retained, the event still gets its trigger check.
		span.RecordError(fmt.Errorf("failed to record vehicle event: %w", err))
		if !errors.Is(err, contextstore.ErrSchemaMismatch) {
			span.SetStatus(codes.Error, err.Error())
		}
	}

	if o.dialogue == nil {
		return
	}

	response, err := o.dialogue.CheckProactiveTrigger(ctx, eventType, eventData, o.store.Read())
	if err != nil {
		span.RecordError(fmt.Errorf("proactive trigger check failed: %w", err))
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if response == nil {
		return
	}

	span.AddEvent("proactive trigger fired")
	o.machine.enqueue(events.NewProactiveNotification(eventType, response.Speech, response.Commands))
}

// recordVehicleEvent folds the event payload into the shared vehicle state
// and stamps the event type so context readers can see what happened last.
func (o *Orchestrator) recordVehicleEvent(eventType string, eventData map[string]any) error {
	update := map[string]any{"last_event": eventType}
	for key, value := range eventData {
		update[key] = value
	}
	return o.store.Update(contextstore.Update{VehicleState: update})
}

// OnTranscription feeds a final transcription into the state machine. The
// speech-input collaborator delivers through this handler; tests and
// push-to-talk surfaces may call it directly.
func (o *Orchestrator) OnTranscription(transcript string, confidence float64) {
	o.machine.enqueue(events.NewTranscriptionReceived(transcript, confidence))
}

// OnWakeWord injects a wake-word detection, equivalent to the steady-state
// loop noticing one.
func (o *Orchestrator) OnWakeWord() {
	o.machine.enqueue(events.NewWakeDetected())
}
