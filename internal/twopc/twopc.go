// Package twopc tracks the progress of a two-phase-commit transaction as a
// pure, deterministic state value, independent of networking, durability,
// and retry mechanics.
//
// A coordinator owns one Transaction per in-flight 2PC, applies transition
// operations as protocol events arrive, and reads NextAction after each
// transition to learn which requests are still outstanding. Every operation
// returns a new value and never mutates the receiver, so a coordinator can
// persist the value at any point and resume from it after a crash.
//
// Operations on a single logical transaction must be applied in strict
// sequence: each transition reads the entire prior value. The embedding
// coordinator is responsible for the single-writer discipline, typically by
// having one goroutine own each transaction and process one event at a time.
package twopc

import (
	"fmt"
	"slices"
)

// Transaction is the immutable state value for one two-phase-commit
// transaction. The participant identity type P must be usable as a map key;
// two values denote the same participant iff they are equal.
//
// The zero value is not usable; construct with New or Restore.
type Transaction[P comparable] struct {
	id     any
	client any

	phase        Phase
	participants map[P]struct{}

	// awaiting is the subset of participants the current phase still needs
	// a response from. Always a subset of participants; nil outside the
	// voting, committing and rolling_back phases.
	awaiting map[P]struct{}
}

// New builds a transaction in the interactive phase with the given initial
// participants. Duplicates collapse to one. The id and client handles are
// opaque: they are carried for the caller and never interpreted.
func New[P comparable](participants []P, id, client any) Transaction[P] {
	set := make(map[P]struct{}, len(participants))
	for _, p := range participants {
		set[p] = struct{}{}
	}
	return Transaction[P]{
		id:           id,
		client:       client,
		phase:        PhaseInteractive,
		participants: set,
	}
}

// ID returns the caller-assigned transaction identifier.
func (tx Transaction[P]) ID() any {
	return tx.id
}

// Client returns the caller-assigned handle used to route the final outcome
// back to whoever requested the transaction.
func (tx Transaction[P]) Client() any {
	return tx.client
}

// Phase returns the current protocol phase.
func (tx Transaction[P]) Phase() Phase {
	return tx.phase
}

// Terminal reports whether the transaction reached aborted or committed.
func (tx Transaction[P]) Terminal() bool {
	return tx.phase.Terminal()
}

// Participants returns the full participant set regardless of phase.
// Order is unspecified.
func (tx Transaction[P]) Participants() []P {
	return setToSlice(tx.participants)
}

// Awaiting returns the participants the current phase still needs a
// response from. It is empty in the interactive and terminal phases.
func (tx Transaction[P]) Awaiting() []P {
	return setToSlice(tx.awaiting)
}

// AddParticipant returns a transaction with the participant added. Valid
// only in the interactive phase: once voting has begun the participant set
// is frozen.
func (tx Transaction[P]) AddParticipant(p P) (Transaction[P], error) {
	if tx.phase != PhaseInteractive {
		return tx, newPhaseError("AddParticipant", tx.phase)
	}
	next := tx
	next.participants = cloneSet(tx.participants)
	next.participants[p] = struct{}{}
	return next, nil
}

// Prepare moves the transaction from interactive to voting, arming the full
// participant set as awaiting. It requires at least two participants:
// two-phase commit over fewer is a degenerate case the protocol does not
// special-case.
func (tx Transaction[P]) Prepare() (Transaction[P], error) {
	if tx.phase != PhaseInteractive {
		return tx, newPhaseError("Prepare", tx.phase)
	}
	if len(tx.participants) < 2 {
		return tx, fmt.Errorf("%w: have %d", ErrTooFewParticipants, len(tx.participants))
	}
	return tx.transition(PhaseVoting, cloneSet(tx.participants))
}

// Prepared records a commit vote from the participant.
//
// In the voting phase the participant is removed from the awaiting set;
// a duplicate vote is a harmless no-op. Once every participant has voted
// commit the transaction moves to committing with the full set re-armed
// for commit acknowledgments. In the rolling_back phase the abort decision
// has already been made, so a late commit vote is absorbed without a phase
// change; the participant is still validated to catch programming errors.
func (tx Transaction[P]) Prepared(p P) (Transaction[P], error) {
	switch tx.phase {
	case PhaseVoting:
		if !tx.knows(p) {
			return tx, fmt.Errorf("%w: %v", ErrUnknownParticipant, p)
		}
		awaiting := deleteFromSet(tx.awaiting, p)
		if len(awaiting) == 0 {
			return tx.transition(PhaseCommitting, cloneSet(tx.participants))
		}
		next := tx
		next.awaiting = awaiting
		return next, nil

	case PhaseRollingBack:
		if !tx.knows(p) {
			return tx, fmt.Errorf("%w: %v", ErrUnknownParticipant, p)
		}
		return tx, nil

	default:
		return tx, newPhaseError("Prepared", tx.phase)
	}
}

// Aborted records an abort vote from the participant. A single abort vote
// aborts the entire transaction for all participants.
//
// In the voting phase the transaction moves to rolling_back with the full
// participant set re-armed, including participants that already voted
// commit: they must undo their staged effects too. A participant that
// already voted commit and now votes abort broke the vote-exactly-once
// contract; that is reported as ErrInconsistentVote, never absorbed.
// In the rolling_back phase further abort votes are absorbed.
func (tx Transaction[P]) Aborted(p P) (Transaction[P], error) {
	switch tx.phase {
	case PhaseVoting:
		if !tx.knows(p) {
			return tx, fmt.Errorf("%w: %v", ErrUnknownParticipant, p)
		}
		if _, waiting := tx.awaiting[p]; !waiting {
			return tx, fmt.Errorf("%w: %v", ErrInconsistentVote, p)
		}
		return tx.transition(PhaseRollingBack, cloneSet(tx.participants))

	case PhaseRollingBack:
		if !tx.knows(p) {
			return tx, fmt.Errorf("%w: %v", ErrUnknownParticipant, p)
		}
		return tx, nil

	default:
		return tx, newPhaseError("Aborted", tx.phase)
	}
}

// RolledBack acknowledges that the participant undid its local effects.
// When the last awaited acknowledgment arrives the transaction reaches the
// terminal aborted phase.
func (tx Transaction[P]) RolledBack(p P) (Transaction[P], error) {
	if tx.phase != PhaseRollingBack {
		return tx, newPhaseError("RolledBack", tx.phase)
	}
	if !tx.knows(p) {
		return tx, fmt.Errorf("%w: %v", ErrUnknownParticipant, p)
	}
	awaiting := deleteFromSet(tx.awaiting, p)
	if len(awaiting) == 0 {
		return tx.transition(PhaseAborted, nil)
	}
	next := tx
	next.awaiting = awaiting
	return next, nil
}

// Committed acknowledges that the participant durably applied its local
// effect. When the last awaited acknowledgment arrives the transaction
// reaches the terminal committed phase.
func (tx Transaction[P]) Committed(p P) (Transaction[P], error) {
	if tx.phase != PhaseCommitting {
		return tx, newPhaseError("Committed", tx.phase)
	}
	if !tx.knows(p) {
		return tx, fmt.Errorf("%w: %v", ErrUnknownParticipant, p)
	}
	awaiting := deleteFromSet(tx.awaiting, p)
	if len(awaiting) == 0 {
		return tx.transition(PhaseCommitted, nil)
	}
	next := tx
	next.awaiting = awaiting
	return next, nil
}

// NextAction derives the outstanding protocol work from the phase alone.
// A coordinator that reloads a persisted transaction calls this to learn
// exactly which requests remain outstanding, without replaying history.
func (tx Transaction[P]) NextAction() Action[P] {
	switch tx.phase {
	case PhaseInteractive:
		return Action[P]{Kind: ActionWriteData}
	case PhaseVoting:
		return Action[P]{Kind: ActionVote, Awaiting: setToSlice(tx.awaiting)}
	case PhaseCommitting:
		return Action[P]{Kind: ActionCommit, Awaiting: setToSlice(tx.awaiting)}
	case PhaseRollingBack:
		return Action[P]{Kind: ActionRollBack, Awaiting: setToSlice(tx.awaiting)}
	default:
		return Action[P]{Kind: ActionNone}
	}
}

// transition moves the transaction to the next phase after checking the
// move against the PhaseTransitions graph, replacing the awaiting set.
func (tx Transaction[P]) transition(next Phase, awaiting map[P]struct{}) (Transaction[P], error) {
	if !slices.Contains(PhaseTransitions[tx.phase], next) {
		return tx, fmt.Errorf("%w: %s -> %s", ErrInvalidPhase, tx.phase, next)
	}
	out := tx
	out.phase = next
	out.awaiting = awaiting
	return out, nil
}

func (tx Transaction[P]) knows(p P) bool {
	_, ok := tx.participants[p]
	return ok
}

func cloneSet[P comparable](set map[P]struct{}) map[P]struct{} {
	out := make(map[P]struct{}, len(set))
	for p := range set {
		out[p] = struct{}{}
	}
	return out
}

// deleteFromSet returns a copy of the set without p. Removing an absent
// member yields an identical copy, which is what makes duplicate votes and
// acknowledgments harmless.
func deleteFromSet[P comparable](set map[P]struct{}, p P) map[P]struct{} {
	out := cloneSet(set)
	delete(out, p)
	return out
}

func setToSlice[P comparable](set map[P]struct{}) []P {
	if len(set) == 0 {
		return nil
	}
	out := make([]P, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
