package deepgram

import (
	"context"
	"testing"

	"github.com/lukamarin/cabin-core/core/speechinput"
)

func TestWakeWordMatchesIgnoringCaseAndPunctuation(t *testing.T) {
	s := NewTranscriptionClient(speechinput.WithWakeWord("hey assistant"))

	for _, transcript := range []string{
		"hey assistant",
		"Hey Assistant!",
		"okay, hey assistant, set the temperature",
	} {
		if !s.matchesWakeWord(transcript) {
			t.Fatalf("expected %q to match the wake word", transcript)
		}
	}

	if s.matchesWakeWord("hey there") {
		t.Fatalf("expected an unrelated phrase not to match")
	}
}

func TestDeliverUtteranceAveragesSegmentConfidence(t *testing.T) {
	s := NewTranscriptionClient()

	delivered := make(chan float64, 1)
	s.SetTranscriptionHandler(func(transcript string, confidence float64) {
		if transcript != "set the temperature to 21" {
			t.Errorf("unexpected transcript %q", transcript)
		}
		delivered <- confidence
	})

	s.accumulatedTranscript = " set the temperature to 21"
	s.segmentConfidences = []float64{0.8, 1.0}
	s.deliverUtterance()

	select {
	case confidence := <-delivered:
		if confidence != 0.9 {
			t.Fatalf("expected mean confidence 0.9, got %v", confidence)
		}
	default:
		t.Fatalf("expected the handler to receive the utterance")
	}

	if s.accumulatedTranscript != "" || s.segmentConfidences != nil {
		t.Fatalf("expected the accumulator to reset after delivery")
	}
}

func TestDeliverUtteranceSkipsEmptyTranscript(t *testing.T) {
	s := NewTranscriptionClient()

	s.SetTranscriptionHandler(func(transcript string, confidence float64) {
		t.Errorf("expected no delivery for an empty utterance, got %q", transcript)
	})

	s.accumulatedTranscript = "   "
	s.deliverUtterance()
}

func TestWakeWordDetectionClearsOnRead(t *testing.T) {
	s := NewTranscriptionClient()
	s.wakeDetected.Store(true)

	if !s.IsWakeWordDetected(context.Background()) {
		t.Fatalf("expected the pending detection to be reported")
	}
	if s.IsWakeWordDetected(context.Background()) {
		t.Fatalf("expected the detection to clear once read")
	}
}
