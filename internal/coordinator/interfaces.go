package coordinator

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// Outcome is the final result of a transaction, routed back to the client
// handle that requested it.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeAborted   Outcome = "aborted"
)

// Messenger delivers protocol requests to participants. Delivery is
// at-least-once: the orchestrator re-sends outstanding requests after crash
// recovery, and duplicate acknowledgments are harmless to the state machine.
type Messenger interface {
	// SendPrepare asks the participant to vote on the transaction.
	SendPrepare(ctx context.Context, txID uuid.UUID, participant string) error

	// SendCommit asks the participant to durably apply its staged effect.
	SendCommit(ctx context.Context, txID uuid.UUID, participant string) error

	// SendRollback asks the participant to discard its staged effect.
	SendRollback(ctx context.Context, txID uuid.UUID, participant string) error
}

// Notifier routes the terminal outcome of a transaction back to its client.
type Notifier interface {
	NotifyOutcome(ctx context.Context, txID uuid.UUID, client string, outcome Outcome)
}

// Processor applies coordinator commands. Implemented by Orchestrator;
// abstracted so the Runner can be tested with a fake.
type Processor interface {
	Apply(ctx context.Context, cmd Command) (uuid.UUID, error)
	WaitForCompletion(ctx context.Context) error
}
