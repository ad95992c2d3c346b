package taphold

import "errors"

// Tap-hold engine errors. None of these propagate out of the engine; they
// are logged and the offending event dropped.
var (
	// ErrNoFreeSlot is returned when the bounded active-tap-hold table
	// (≤ ~10 instances) has no free entry for a new DOWN.
	ErrNoFreeSlot = errors.New("taphold: no free active-tap-hold slot")

	// ErrNoSuchPosition is a state-inconsistency error: a release arrived
	// for a position with no matching active entry. Logged at warning; the
	// operation is a no-op.
	ErrNoSuchPosition = errors.New("taphold: release for position with no active entry")

	// ErrQueueFull surfaces capture.ErrQueueFull without taphold importing
	// it as part of its public error surface beyond this package boundary.
	ErrQueueFull = errors.New("taphold: capture queue full, press dropped")
)
