package orchestration

import (
	"context"
	"errors"
)

var (
	// ErrIntegrityCheckFailed aborts startup entirely. Never retried.
	ErrIntegrityCheckFailed = errors.New("system integrity check failed")
	// ErrRecoveryFailed marks a component that stayed unhealthy after its
	// restart budget was exhausted. Escalates to emergency shutdown.
	ErrRecoveryFailed = errors.New("component recovery failed")
	// ErrNotRunning is returned by operations that need an active system.
	ErrNotRunning = errors.New("orchestrator is not running")
)

// CriticalError marks an error that must escalate to emergency shutdown
// instead of being retried or logged away.
type CriticalError struct {
	Err error
}

func (e CriticalError) Error() string { return "critical: " + e.Err.Error() }
func (e CriticalError) Unwrap() error { return e.Err }

// Critical wraps err so [IsCritical] reports it as fatal.
func Critical(err error) error {
	if err == nil {
		return nil
	}
	return CriticalError{Err: err}
}

// IsCritical classifies an error per the orchestrator's fault taxonomy.
// Everything not explicitly critical is treated as transient: logged at the
// loop boundary and retried on the next iteration.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}

	critical := CriticalError{}
	if errors.As(err, &critical) {
		return true
	}

	return errors.Is(err, ErrIntegrityCheckFailed) || errors.Is(err, ErrRecoveryFailed)
}

// isCancellation reports context-driven termination, which is an orderly
// shutdown rather than a fault.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
