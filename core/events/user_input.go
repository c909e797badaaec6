package events

// KindWakeDetected identifies wake-word detection.
const KindWakeDetected Kind = "user_input.wake_detected"

// WakeDetected marks a wake word heard by the speech-input collaborator.
type WakeDetected struct{ Base }

// NewWakeDetected creates a wake detected event.
func NewWakeDetected() WakeDetected {
	return WakeDetected{Base: NewBase(KindWakeDetected)}
}

// KindTranscriptionReceived identifies a final transcription.
const KindTranscriptionReceived Kind = "user_input.transcription"

// TranscriptionReceived carries a final transcription and the recognizer's
// confidence in it.
type TranscriptionReceived struct {
	Base

	Transcript string
	Confidence float64
}

// NewTranscriptionReceived creates a transcription event.
func NewTranscriptionReceived(transcript string, confidence float64) TranscriptionReceived {
	return TranscriptionReceived{
		Base:       NewBase(KindTranscriptionReceived),
		Transcript: transcript,
		Confidence: confidence,
	}
}
