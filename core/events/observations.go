package events

import "github.com/lukamarin/cabin-core/core/vehicle"

// Observation events are emitted by the orchestration core for embedding
// clients; the state machine never consumes them.

// KindStateChanged identifies a state-machine transition.
const KindStateChanged Kind = "session.state_changed"

// StateChanged reports the state the machine settled in after evaluating a
// trigger.
type StateChanged struct {
	Base

	State string
}

// NewStateChanged creates a state changed event.
func NewStateChanged(state string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), State: state}
}

// KindResponseGenerated identifies a generated spoken response.
const KindResponseGenerated Kind = "dialogue.response_generated"

// ResponseGenerated carries the speech text produced for the current turn.
type ResponseGenerated struct {
	Base

	Response string
}

// NewResponseGenerated creates a response generated event.
func NewResponseGenerated(response string) ResponseGenerated {
	return ResponseGenerated{Base: NewBase(KindResponseGenerated), Response: response}
}

// KindCommandExecuted identifies a completed vehicle command execution.
const KindCommandExecuted Kind = "vehicle.command_executed"

// CommandExecuted reports one executed command and its outcome.
type CommandExecuted struct {
	Base

	Command vehicle.Command
	Err     error
}

// NewCommandExecuted creates a command executed event.
func NewCommandExecuted(command vehicle.Command, err error) CommandExecuted {
	return CommandExecuted{Base: NewBase(KindCommandExecuted), Command: command, Err: err}
}
