// Phase definitions and the legal phase graph for a two-phase-commit
// transaction.
package twopc

// Phase identifies where a transaction is in the two-phase-commit protocol.
type Phase string

const (
	// PhaseInteractive is the initial phase: participants are still being
	// collected and no voting has started.
	PhaseInteractive Phase = "interactive"

	// PhaseVoting means prepare requests are outstanding and the
	// coordinator is waiting for votes.
	PhaseVoting Phase = "voting"

	// PhaseCommitting means every participant voted commit and the
	// coordinator is waiting for commit acknowledgments.
	PhaseCommitting Phase = "committing"

	// PhaseRollingBack means at least one participant voted abort and the
	// coordinator is waiting for rollback acknowledgments.
	PhaseRollingBack Phase = "rolling_back"

	// PhaseAborted is a terminal phase: every participant acknowledged
	// rolling back its local effect.
	PhaseAborted Phase = "aborted"

	// PhaseCommitted is a terminal phase: every participant acknowledged
	// durably applying its local effect.
	PhaseCommitted Phase = "committed"
)

// PhaseTransitions defines the valid phase transitions for a transaction.
// Late votes arriving during rolling_back are absorbed without a phase
// change, so they do not appear here.
var PhaseTransitions = map[Phase][]Phase{
	PhaseInteractive: {PhaseVoting},
	PhaseVoting:      {PhaseCommitting, PhaseRollingBack},
	PhaseCommitting:  {PhaseCommitted},
	PhaseRollingBack: {PhaseAborted},

	PhaseAborted:   {}, // terminal
	PhaseCommitted: {}, // terminal
}

// TerminalPhases lists the phases from which no further transition is
// accepted.
var TerminalPhases = []Phase{PhaseAborted, PhaseCommitted}

// Terminal reports whether the phase accepts no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseAborted || p == PhaseCommitted
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	_, ok := PhaseTransitions[p]
	return ok
}

// String returns the phase name.
func (p Phase) String() string {
	return string(p)
}
