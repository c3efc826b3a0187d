package twopc

import "fmt"

// Snapshot is the plain-data projection of a transaction, suitable for
// durable persistence by the embedding coordinator. A coordinator that
// saves a snapshot after each transition can crash, restore the value and
// derive the outstanding work from NextAction alone.
type Snapshot[P comparable] struct {
	Phase        Phase `json:"phase"`
	Participants []P   `json:"participants"`
	Awaiting     []P   `json:"awaiting,omitempty"`
}

// Snapshot returns the persistable projection of the transaction. The id
// and client handles are not included: they are opaque to the state machine
// and the coordinator stores them alongside.
func (tx Transaction[P]) Snapshot() Snapshot[P] {
	return Snapshot[P]{
		Phase:        tx.phase,
		Participants: setToSlice(tx.participants),
		Awaiting:     setToSlice(tx.awaiting),
	}
}

// Restore rebuilds a transaction from a persisted snapshot, reattaching the
// opaque id and client handles. It rejects snapshots that do not describe a
// reachable value: an unknown phase, an awaiting participant outside the
// participant set, or an awaiting set in a phase that cannot carry one.
func Restore[P comparable](snap Snapshot[P], id, client any) (Transaction[P], error) {
	if !snap.Phase.Valid() {
		return Transaction[P]{}, fmt.Errorf("%w: unknown phase %q", ErrInvalidSnapshot, snap.Phase)
	}

	participants := make(map[P]struct{}, len(snap.Participants))
	for _, p := range snap.Participants {
		participants[p] = struct{}{}
	}

	tx := Transaction[P]{
		id:           id,
		client:       client,
		phase:        snap.Phase,
		participants: participants,
	}

	switch snap.Phase {
	case PhaseVoting, PhaseCommitting, PhaseRollingBack:
		if len(snap.Awaiting) == 0 {
			return Transaction[P]{}, fmt.Errorf(
				"%w: phase %q requires a non-empty awaiting set", ErrInvalidSnapshot, snap.Phase)
		}
		awaiting := make(map[P]struct{}, len(snap.Awaiting))
		for _, p := range snap.Awaiting {
			if _, ok := participants[p]; !ok {
				return Transaction[P]{}, fmt.Errorf(
					"%w: awaiting participant %v is not in the participant set", ErrInvalidSnapshot, p)
			}
			awaiting[p] = struct{}{}
		}
		tx.awaiting = awaiting

	default:
		if len(snap.Awaiting) != 0 {
			return Transaction[P]{}, fmt.Errorf(
				"%w: phase %q cannot carry an awaiting set", ErrInvalidSnapshot, snap.Phase)
		}
	}

	return tx, nil
}
