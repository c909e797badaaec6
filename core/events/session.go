package events

// KindSessionEnded identifies completion of a conversation session.
const KindSessionEnded Kind = "session.ended"

// SessionEnded marks the machine's return to idle, with session counters for
// telemetry.
type SessionEnded struct {
	Base

	SessionID string
	Turns     int
}

// NewSessionEnded creates a session ended event.
func NewSessionEnded(sessionID string, turns int) SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded), SessionID: sessionID, Turns: turns}
}
