package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecoverRestartsFailedComponent(t *testing.T) {
	failing := &lifecycleStub{healOnRestart: true}
	failing.unhealthy.Store(true)
	set := newTestComponentSet(map[string]Component{ComponentSpeechOutput: failing})
	manager := newRecoveryManager(set, 2, 100*time.Millisecond)

	result := manager.recover(context.Background(), []string{ComponentSpeechOutput})

	if !result.FullyRecovered {
		t.Fatalf("expected a full recovery, got %v", result.Components)
	}
	if !result.Components[ComponentSpeechOutput] {
		t.Fatalf("expected %s to be marked recovered", ComponentSpeechOutput)
	}
	if got := failing.restartCalls.Load(); got != 1 {
		t.Fatalf("expected one restart, got %d", got)
	}
}

func TestRecoverExhaustsRestartBudget(t *testing.T) {
	stuck := &lifecycleStub{restartErr: errors.New("will not come back")}
	stuck.unhealthy.Store(true)
	set := newTestComponentSet(map[string]Component{ComponentSpeechOutput: stuck})
	manager := newRecoveryManager(set, 3, 100*time.Millisecond)

	result := manager.recover(context.Background(), []string{ComponentSpeechOutput})

	if result.FullyRecovered {
		t.Fatalf("expected recovery to fail")
	}
	if got := stuck.restartCalls.Load(); got != 3 {
		t.Fatalf("expected the full restart budget to be spent, got %d attempts", got)
	}
}

func TestRecoverFailsWhenRestartDoesNotHeal(t *testing.T) {
	zombie := &lifecycleStub{}
	zombie.unhealthy.Store(true)
	set := newTestComponentSet(map[string]Component{ComponentSpeechInput: zombie})
	manager := newRecoveryManager(set, 2, 100*time.Millisecond)

	result := manager.recover(context.Background(), []string{ComponentSpeechInput})

	if result.FullyRecovered {
		t.Fatalf("expected a restart that leaves the component unhealthy to fail recovery")
	}
}

func TestHungRestartCountsAsFailedAttempt(t *testing.T) {
	hung := &lifecycleStub{blockRestart: 500 * time.Millisecond, healOnRestart: true}
	hung.unhealthy.Store(true)
	set := newTestComponentSet(map[string]Component{ComponentSpeechInput: hung})
	manager := newRecoveryManager(set, 1, 30*time.Millisecond)

	result := manager.recover(context.Background(), []string{ComponentSpeechInput})

	if result.FullyRecovered {
		t.Fatalf("expected a hung restart to fail the attempt")
	}
}

func TestRecoverUnknownComponentFails(t *testing.T) {
	manager := newRecoveryManager(&componentSet{}, 1, 100*time.Millisecond)

	result := manager.recover(context.Background(), []string{"imaginary"})

	if result.FullyRecovered {
		t.Fatalf("expected recovery of an unknown component to fail")
	}
}
