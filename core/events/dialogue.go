package events

import "github.com/lukamarin/cabin-core/core/vehicle"

// KindProactiveNotification identifies system-initiated speech.
const KindProactiveNotification Kind = "dialogue.proactive_notification"

// ProactiveNotification carries speech (and optional commands) generated in
// response to a vehicle event rather than user input.
type ProactiveNotification struct {
	Base

	EventType string
	Speech    string
	Commands  []vehicle.Command
}

// NewProactiveNotification creates a proactive notification event.
func NewProactiveNotification(eventType, speech string, commands []vehicle.Command) ProactiveNotification {
	return ProactiveNotification{
		Base:      NewBase(KindProactiveNotification),
		EventType: eventType,
		Speech:    speech,
		Commands:  commands,
	}
}
