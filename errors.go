package guardian

import (
	"errors"
	"fmt"
)

// Error taxonomy. Mutating operations return these wrapped with context;
// callers test with errors.Is. The read path (Authorize and friends) never
// surfaces them directly; failures become Decision{Source: SourceError}.
var (
	// ErrNotFound marks a missing tenant, grant, role, assignment or policy.
	ErrNotFound = errors.New("not found")
	// ErrDepthExceeded marks a create or move that would push a tenant past
	// the configured maximum tree depth.
	ErrDepthExceeded = errors.New("max tenant depth exceeded")
	// ErrCyclicMove marks a move that would make a tenant its own descendant.
	ErrCyclicMove = errors.New("cyclic tenant move")
	// ErrValidation marks malformed input: empty action sets, unknown policy
	// effects, mutations of system roles.
	ErrValidation = errors.New("validation failed")
	// ErrPolicyEvaluation marks a condition that could not be evaluated. The
	// engine fails closed on it: never a pass-through allow.
	ErrPolicyEvaluation = errors.New("policy evaluation failed")
	// ErrStore marks an underlying persistence failure.
	ErrStore = errors.New("store failure")
)

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func depthf(level, limit int) error {
	return fmt.Errorf("%w: level %d exceeds limit %d", ErrDepthExceeded, level, limit)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func evaluationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPolicyEvaluation, fmt.Sprintf(format, args...))
}

func storef(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}
