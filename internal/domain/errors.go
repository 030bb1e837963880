package domain

import "errors"

// Error taxonomy for engine operations. Callers classify with errors.Is;
// lower layers wrap these with fmt.Errorf("%w: ...") for context.
var (
	// ErrValidation covers missing loan facts, malformed hierarchies and
	// over-allocating rate tables. Raised before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a commission id resolves to nothing.
	ErrNotFound = errors.New("commission not found")

	// ErrInvalidTransition is a state-machine guard violation. The record
	// is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyConfirmed is returned when bank confirmation is recorded a
	// second time. A correction requires a new audit-logged action.
	ErrAlreadyConfirmed = errors.New("bank confirmation already recorded")

	// ErrConcurrentModification signals a racing writer lost an optimistic
	// version check. The caller should reload and retry.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrReconciliationMismatch means a financial invariant was violated
	// after recompute. Never auto-corrected; surfaced as a bug.
	ErrReconciliationMismatch = errors.New("financial summary reconciliation mismatch")
)
