package twopc

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewParticipants indicates Prepare was called with fewer than
	// two participants.
	ErrTooFewParticipants = errors.New("two-phase commit requires at least two participants")

	// ErrUnknownParticipant indicates a vote or acknowledgment referenced a
	// participant that is not part of the transaction.
	ErrUnknownParticipant = errors.New("participant is not part of this transaction")

	// ErrInvalidPhase indicates an operation was invoked in a phase where
	// it is not defined.
	ErrInvalidPhase = errors.New("operation is not valid in the current phase")

	// ErrInconsistentVote indicates a participant voted abort after already
	// voting commit in the same round. This is a broken safety invariant:
	// the coordinator should treat it as fatal for the transaction rather
	// than mask it.
	ErrInconsistentVote = errors.New("participant voted abort after voting commit")

	// ErrInvalidSnapshot indicates a persisted snapshot does not describe a
	// reachable transaction value.
	ErrInvalidSnapshot = errors.New("snapshot does not describe a reachable transaction")
)

// PhaseError reports the operation and phase for a call made in a phase
// where the operation is not defined.
type PhaseError struct {
	Op    string
	Phase Phase
}

// Error implements the error interface.
func (pe *PhaseError) Error() string {
	return fmt.Sprintf("%s is not valid in phase %q", pe.Op, pe.Phase)
}

// Unwrap returns ErrInvalidPhase so callers can match with errors.Is.
func (pe *PhaseError) Unwrap() error {
	return ErrInvalidPhase
}

func newPhaseError(op string, phase Phase) *PhaseError {
	return &PhaseError{Op: op, Phase: phase}
}
