package orchestration

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsCriticalClassifiesErrors(t *testing.T) {
	if IsCritical(nil) {
		t.Fatalf("expected nil to be non-critical")
	}
	if IsCritical(errors.New("transient hiccup")) {
		t.Fatalf("expected a plain error to be non-critical")
	}
	if !IsCritical(Critical(errors.New("watchdog tripped"))) {
		t.Fatalf("expected a wrapped critical error to classify as critical")
	}
	if !IsCritical(fmt.Errorf("startup: %w", ErrIntegrityCheckFailed)) {
		t.Fatalf("expected integrity failures to classify as critical")
	}
	if !IsCritical(fmt.Errorf("startup: %w", ErrRecoveryFailed)) {
		t.Fatalf("expected recovery failures to classify as critical")
	}
}

func TestCriticalOfNilIsNil(t *testing.T) {
	if Critical(nil) != nil {
		t.Fatalf("expected Critical(nil) to stay nil")
	}
}

func TestCriticalErrorUnwraps(t *testing.T) {
	cause := errors.New("root cause")
	if !errors.Is(Critical(cause), cause) {
		t.Fatalf("expected the critical wrapper to unwrap to its cause")
	}
}
