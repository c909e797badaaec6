// Package telemetry is a structured-log telemetry sink for the orchestrator.
// Events and interactions land in the OpenTelemetry log pipeline so the fleet
// backend can aggregate them alongside traces.
package telemetry

import (
	orchestration "github.com/lukamarin/cabin-core/core"
)

// Sink records orchestrator telemetry. The zero value is usable.
type Sink struct{}

func NewSink() *Sink {
	return &Sink{}
}

// LogEvent records one named system event with its payload.
func (s *Sink) LogEvent(name string, payload map[string]any) {
	args := make([]any, 0, 2+len(payload)*2)
	args = append(args, "event", name)
	for key, value := range payload {
		args = append(args, key, value)
	}
	logger.Info("system event", args...)
}

// LogInteraction records one completed user turn.
func (s *Sink) LogInteraction(input string, nlu orchestration.NLUResult, response orchestration.DialogueResponse) {
	logger.Info("interaction",
		"input", input,
		"intent", nlu.Intent,
		"confidence", nlu.Confidence,
		"response", response.SpeechResponse,
		"commands", len(response.Commands),
		"end_conversation", response.EndConversation,
	)
}
