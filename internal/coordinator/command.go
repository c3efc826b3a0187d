package coordinator

import "github.com/gofrs/uuid/v5"

// CommandKind identifies a coordinator command.
type CommandKind string

const (
	// CmdBegin starts tracking a new transaction.
	CmdBegin CommandKind = "begin"

	// CmdAddParticipant enlists a participant while the transaction is
	// still interactive.
	CmdAddParticipant CommandKind = "add_participant"

	// CmdRequestCommit ends the interactive phase and sends prepare
	// requests to every participant.
	CmdRequestCommit CommandKind = "request_commit"

	// CmdVoteCommit records a participant's commit vote.
	CmdVoteCommit CommandKind = "vote_commit"

	// CmdVoteAbort records a participant's abort vote.
	CmdVoteAbort CommandKind = "vote_abort"

	// CmdAckCommitted records a participant's commit acknowledgment.
	CmdAckCommitted CommandKind = "ack_committed"

	// CmdAckRolledBack records a participant's rollback acknowledgment.
	CmdAckRolledBack CommandKind = "ack_rolled_back"
)

// Command is one unit of work for the coordinator. Commands are applied one
// at a time, which gives each tracked transaction the single-writer
// discipline the state machine requires.
type Command struct {
	Kind CommandKind

	// TxID identifies the transaction; unset for CmdBegin.
	TxID uuid.UUID

	// Participant names the voter or acknowledger for vote/ack commands,
	// or the participant to enlist for CmdAddParticipant.
	Participant string

	// Client and Participants are used by CmdBegin only.
	Client       string
	Participants []string

	// Result, when non-nil, receives the outcome of applying the command.
	// Used by callers that need the assigned transaction ID or the error.
	Result chan<- CommandResult
}

// CommandResult reports how a command was applied.
type CommandResult struct {
	TxID uuid.UUID
	Err  error
}
