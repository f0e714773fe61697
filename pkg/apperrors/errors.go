// Package apperrors defines the error kinds surfaced by the decision engine.
// Callers map these to transport-level responses; the engine itself never
// swallows them. Wrap with fmt.Errorf("...: %w", apperrors.ErrX) and check
// with errors.Is.
package apperrors

import "errors"

var (
	// ErrValidation indicates malformed input to an operation. Always
	// caller-correctable (e.g. an override decision without a rationale).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a referenced version, item or phase instance
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation violates a state invariant:
	// adding items to a non-draft version, racing submissions for the
	// active version, or a unique-constraint violation from the store.
	ErrConflict = errors.New("conflict")

	// ErrBusinessLogic indicates a well-formed operation that violates a
	// domain sequencing rule, such as recording an owner decision before
	// any reviewer decision exists.
	ErrBusinessLogic = errors.New("business rule violated")

	// ErrForbidden indicates the actor lacks permission for the action.
	ErrForbidden = errors.New("forbidden")

	// ErrInfrastructure indicates a persistence or collaborator failure
	// that is not attributable to caller input. The in-progress operation
	// has been rolled back.
	ErrInfrastructure = errors.New("infrastructure failure")

	// ErrJobTimeout indicates a delegated background job did not reach a
	// terminal status within the caller-supplied timeout.
	ErrJobTimeout = errors.New("job polling timed out")
)
