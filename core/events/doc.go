// Package events defines the typed trigger contract consumed by the
// conversation state machine, plus the observation events the orchestration
// core emits for embedding clients.
//
// Event kinds are grouped by source-facing namespaces:
//
//   - user_input.*
//   - dialogue.*
//   - vehicle.*
//   - session.*
//
// user_input events
//
//   - WakeDetected (user_input.wake_detected): wake word heard while idle.
//   - TranscriptionReceived (user_input.transcription): final transcription
//     with its confidence score.
//
// dialogue events
//
//   - ProactiveNotification (dialogue.proactive_notification): system-initiated
//     speech triggered by a vehicle event rather than user input.
//   - ResponseGenerated (dialogue.response_generated): speech text produced
//     for the current turn.
//
// vehicle events
//
//   - CommandExecuted (vehicle.command_executed): one executed vehicle command
//     and its outcome.
//
// session events
//
//   - StateChanged (session.state_changed): the state the machine settled in
//     after evaluating a trigger.
//   - SessionEnded (session.ended): the active conversation session completed
//     and the machine returned to idle.
package events
