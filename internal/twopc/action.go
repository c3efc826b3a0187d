package twopc

// ActionKind identifies the kind of protocol request a coordinator must
// issue next for a transaction.
type ActionKind string

const (
	// ActionWriteData means the transaction is still interactive: the
	// caller should keep collecting operations before requesting votes.
	ActionWriteData ActionKind = "write_data"

	// ActionVote means prepare requests must be sent to (or are still
	// outstanding for) the awaiting participants.
	ActionVote ActionKind = "vote"

	// ActionCommit means commit requests must be sent to the awaiting
	// participants.
	ActionCommit ActionKind = "commit"

	// ActionRollBack means rollback requests must be sent to the awaiting
	// participants.
	ActionRollBack ActionKind = "roll_back"

	// ActionNone means the transaction is terminal and nothing remains
	// outstanding.
	ActionNone ActionKind = "none"
)

// Action tells the embedding coordinator exactly which protocol messages
// are still outstanding. It is derived from the transaction phase alone,
// which is what makes crash recovery possible without replaying history.
type Action[P comparable] struct {
	Kind     ActionKind
	Awaiting []P
}
