package twopc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prepared drives a fresh transaction over the given participants into the
// voting phase.
func prepared(t *testing.T, participants ...string) Transaction[string] {
	t.Helper()
	tx, err := New(participants, "tx-1", "client-1").Prepare()
	require.NoError(t, err)
	return tx
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("starts interactive with initial participants", func(t *testing.T) {
		tx := New([]string{"a", "b"}, "tx-1", "client-1")

		assert.Equal(t, PhaseInteractive, tx.Phase())
		assert.Equal(t, "tx-1", tx.ID())
		assert.Equal(t, "client-1", tx.Client())
		assert.ElementsMatch(t, []string{"a", "b"}, tx.Participants())
		assert.Empty(t, tx.Awaiting())
	})

	t.Run("collapses duplicate participants", func(t *testing.T) {
		tx := New([]string{"a", "a", "b"}, nil, nil)
		assert.ElementsMatch(t, []string{"a", "b"}, tx.Participants())
	})

	t.Run("accepts an empty participant list", func(t *testing.T) {
		tx := New[string](nil, nil, nil)
		assert.Empty(t, tx.Participants())
		assert.Equal(t, PhaseInteractive, tx.Phase())
	})
}

func TestAddParticipant(t *testing.T) {
	t.Parallel()

	t.Run("adds while interactive", func(t *testing.T) {
		tx := New([]string{"a"}, nil, nil)

		next, err := tx.AddParticipant("b")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, next.Participants())

		// The prior value is untouched.
		assert.ElementsMatch(t, []string{"a"}, tx.Participants())
	})

	t.Run("adding an existing participant is a no-op", func(t *testing.T) {
		tx := New([]string{"a", "b"}, nil, nil)
		next, err := tx.AddParticipant("a")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, next.Participants())
	})

	t.Run("rejected once voting has begun", func(t *testing.T) {
		tx := prepared(t, "a", "b")

		_, err := tx.AddParticipant("c")
		require.ErrorIs(t, err, ErrInvalidPhase)

		var pe *PhaseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, PhaseVoting, pe.Phase)
	})
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	t.Run("arms the full participant set", func(t *testing.T) {
		tx := New([]string{"a", "b", "c"}, nil, nil)

		next, err := tx.Prepare()
		require.NoError(t, err)
		assert.Equal(t, PhaseVoting, next.Phase())
		assert.ElementsMatch(t, []string{"a", "b", "c"}, next.Awaiting())

		action := next.NextAction()
		assert.Equal(t, ActionVote, action.Kind)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, action.Awaiting)
	})

	t.Run("requires at least two participants", func(t *testing.T) {
		for _, participants := range [][]string{nil, {"a"}} {
			tx := New(participants, nil, nil)
			next, err := tx.Prepare()
			require.ErrorIs(t, err, ErrTooFewParticipants)
			assert.Equal(t, PhaseInteractive, next.Phase())
		}
	})

	t.Run("rejected outside interactive", func(t *testing.T) {
		tx := prepared(t, "a", "b")
		_, err := tx.Prepare()
		assert.ErrorIs(t, err, ErrInvalidPhase)
	})
}

func TestFullCommitPath(t *testing.T) {
	t.Parallel()

	tx := prepared(t, "a", "b", "c")

	tx, err := tx.Prepared("a")
	require.NoError(t, err)
	assert.Equal(t, PhaseVoting, tx.Phase())
	assert.ElementsMatch(t, []string{"b", "c"}, tx.Awaiting())

	tx, err = tx.Prepared("b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c"}, tx.Awaiting())

	// The final vote re-arms the full set for commit acknowledgments.
	tx, err = tx.Prepared("c")
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitting, tx.Phase())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, tx.Awaiting())

	action := tx.NextAction()
	assert.Equal(t, ActionCommit, action.Kind)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, action.Awaiting)

	for _, p := range []string{"a", "b", "c"} {
		tx, err = tx.Committed(p)
		require.NoError(t, err)
	}

	assert.Equal(t, PhaseCommitted, tx.Phase())
	assert.True(t, tx.Terminal())
	assert.Equal(t, ActionNone, tx.NextAction().Kind)
}

func TestAbortPath(t *testing.T) {
	t.Parallel()

	tx := prepared(t, "a", "b")

	// A single abort vote aborts the whole transaction and re-arms the
	// full set for rollback acknowledgments.
	tx, err := tx.Aborted("a")
	require.NoError(t, err)
	assert.Equal(t, PhaseRollingBack, tx.Phase())
	assert.ElementsMatch(t, []string{"a", "b"}, tx.Awaiting())

	action := tx.NextAction()
	assert.Equal(t, ActionRollBack, action.Kind)
	assert.ElementsMatch(t, []string{"a", "b"}, action.Awaiting)

	tx, err = tx.RolledBack("a")
	require.NoError(t, err)
	assert.Equal(t, PhaseRollingBack, tx.Phase())
	assert.ElementsMatch(t, []string{"b"}, tx.Awaiting())

	tx, err = tx.RolledBack("b")
	require.NoError(t, err)
	assert.Equal(t, PhaseAborted, tx.Phase())
	assert.True(t, tx.Terminal())
	assert.Equal(t, ActionNone, tx.NextAction().Kind)
}

func TestAbortAfterSomeCommitVotes(t *testing.T) {
	t.Parallel()

	tx := prepared(t, "a", "b", "c")

	tx, err := tx.Prepared("a")
	require.NoError(t, err)

	// b aborts: everyone rolls back, including a which already voted.
	tx, err = tx.Aborted("b")
	require.NoError(t, err)
	assert.Equal(t, PhaseRollingBack, tx.Phase())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, tx.Awaiting())
}

func TestVoting(t *testing.T) {
	t.Parallel()

	t.Run("duplicate commit vote is a no-op", func(t *testing.T) {
		tx := prepared(t, "a", "b")

		tx, err := tx.Prepared("a")
		require.NoError(t, err)

		tx, err = tx.Prepared("a")
		require.NoError(t, err)
		assert.Equal(t, PhaseVoting, tx.Phase())
		assert.ElementsMatch(t, []string{"b"}, tx.Awaiting())
	})

	t.Run("unknown participant vote is rejected", func(t *testing.T) {
		tx := prepared(t, "a", "b")

		next, err := tx.Prepared("x")
		require.ErrorIs(t, err, ErrUnknownParticipant)
		assert.Equal(t, PhaseVoting, next.Phase())
		assert.ElementsMatch(t, []string{"a", "b"}, next.Awaiting())

		_, err = tx.Aborted("x")
		assert.ErrorIs(t, err, ErrUnknownParticipant)
	})

	t.Run("abort after commit vote is an inconsistent vote", func(t *testing.T) {
		tx := prepared(t, "a", "b")

		tx, err := tx.Prepared("a")
		require.NoError(t, err)

		next, err := tx.Aborted("a")
		require.ErrorIs(t, err, ErrInconsistentVote)
		assert.Equal(t, PhaseVoting, next.Phase())
	})
}

func TestRollingBackAbsorption(t *testing.T) {
	t.Parallel()

	rollingBack := func(t *testing.T) Transaction[string] {
		t.Helper()
		tx := prepared(t, "a", "b")
		tx, err := tx.Aborted("a")
		require.NoError(t, err)
		return tx
	}

	t.Run("late commit vote is absorbed", func(t *testing.T) {
		tx := rollingBack(t)
		next, err := tx.Prepared("b")
		require.NoError(t, err)
		assert.Equal(t, PhaseRollingBack, next.Phase())
		assert.ElementsMatch(t, []string{"a", "b"}, next.Awaiting())
	})

	t.Run("further abort votes are absorbed", func(t *testing.T) {
		tx := rollingBack(t)
		next, err := tx.Aborted("b")
		require.NoError(t, err)
		assert.Equal(t, PhaseRollingBack, next.Phase())
		assert.ElementsMatch(t, []string{"a", "b"}, next.Awaiting())
	})

	t.Run("absorbed votes still validate the participant", func(t *testing.T) {
		tx := rollingBack(t)
		_, err := tx.Prepared("x")
		assert.ErrorIs(t, err, ErrUnknownParticipant)
		_, err = tx.Aborted("x")
		assert.ErrorIs(t, err, ErrUnknownParticipant)
	})
}

func TestAcknowledgments(t *testing.T) {
	t.Parallel()

	t.Run("duplicate commit ack is a no-op", func(t *testing.T) {
		tx := prepared(t, "a", "b")
		for _, p := range []string{"a", "b"} {
			var err error
			tx, err = tx.Prepared(p)
			require.NoError(t, err)
		}

		tx, err := tx.Committed("a")
		require.NoError(t, err)
		tx, err = tx.Committed("a")
		require.NoError(t, err)
		assert.Equal(t, PhaseCommitting, tx.Phase())
		assert.ElementsMatch(t, []string{"b"}, tx.Awaiting())
	})

	t.Run("acks validate the participant", func(t *testing.T) {
		tx := prepared(t, "a", "b")
		_, err := tx.RolledBack("a")
		assert.ErrorIs(t, err, ErrInvalidPhase)

		tx, err = tx.Aborted("a")
		require.NoError(t, err)
		_, err = tx.RolledBack("x")
		assert.ErrorIs(t, err, ErrUnknownParticipant)
		_, err = tx.Committed("a")
		assert.ErrorIs(t, err, ErrInvalidPhase)
	})
}

func TestTerminalPhases(t *testing.T) {
	t.Parallel()

	commit := func(t *testing.T) Transaction[string] {
		t.Helper()
		tx := prepared(t, "a", "b")
		for _, p := range []string{"a", "b"} {
			var err error
			tx, err = tx.Prepared(p)
			require.NoError(t, err)
		}
		for _, p := range []string{"a", "b"} {
			var err error
			tx, err = tx.Committed(p)
			require.NoError(t, err)
		}
		return tx
	}

	abort := func(t *testing.T) Transaction[string] {
		t.Helper()
		tx := prepared(t, "a", "b")
		tx, err := tx.Aborted("a")
		require.NoError(t, err)
		for _, p := range []string{"a", "b"} {
			tx, err = tx.RolledBack(p)
			require.NoError(t, err)
		}
		return tx
	}

	for name, build := range map[string]func(*testing.T) Transaction[string]{
		"committed": commit,
		"aborted":   abort,
	} {
		t.Run(name+" accepts no further operations", func(t *testing.T) {
			tx := build(t)
			require.True(t, tx.Terminal())
			assert.Equal(t, ActionNone, tx.NextAction().Kind)

			_, err := tx.AddParticipant("c")
			assert.ErrorIs(t, err, ErrInvalidPhase)
			_, err = tx.Prepare()
			assert.ErrorIs(t, err, ErrInvalidPhase)
			_, err = tx.Prepared("a")
			assert.ErrorIs(t, err, ErrInvalidPhase)
			_, err = tx.Aborted("a")
			assert.ErrorIs(t, err, ErrInvalidPhase)
			_, err = tx.RolledBack("a")
			assert.ErrorIs(t, err, ErrInvalidPhase)
			_, err = tx.Committed("a")
			assert.ErrorIs(t, err, ErrInvalidPhase)

			// Participants remain readable after the terminal phase.
			assert.ElementsMatch(t, []string{"a", "b"}, tx.Participants())
		})
	}
}

func TestAwaitingIsAlwaysASubsetOfParticipants(t *testing.T) {
	t.Parallel()

	subset := func(t *testing.T, tx Transaction[string]) {
		t.Helper()
		assert.Subset(t, tx.Participants(), tx.Awaiting())
	}

	tx := New([]string{"a", "b", "c"}, nil, nil)
	subset(t, tx)

	tx, err := tx.Prepare()
	require.NoError(t, err)
	subset(t, tx)

	tx, err = tx.Prepared("a")
	require.NoError(t, err)
	subset(t, tx)

	tx, err = tx.Aborted("b")
	require.NoError(t, err)
	subset(t, tx)

	tx, err = tx.RolledBack("c")
	require.NoError(t, err)
	subset(t, tx)
}

func TestParticipantsFrozenAfterInteractive(t *testing.T) {
	t.Parallel()

	tx := prepared(t, "a", "b")
	before := tx.Participants()

	tx, err := tx.Prepared("a")
	require.NoError(t, err)
	assert.ElementsMatch(t, before, tx.Participants())

	tx, err = tx.Aborted("b")
	require.NoError(t, err)
	assert.ElementsMatch(t, before, tx.Participants())
}

func TestValueSemantics(t *testing.T) {
	t.Parallel()

	// Every transition leaves the prior value usable for persistence.
	tx0 := New([]string{"a", "b"}, nil, nil)
	tx1, err := tx0.Prepare()
	require.NoError(t, err)
	tx2, err := tx1.Prepared("a")
	require.NoError(t, err)

	assert.Equal(t, PhaseInteractive, tx0.Phase())
	assert.Equal(t, PhaseVoting, tx1.Phase())
	assert.ElementsMatch(t, []string{"a", "b"}, tx1.Awaiting())
	assert.ElementsMatch(t, []string{"b"}, tx2.Awaiting())
}

func TestNextActionInteractive(t *testing.T) {
	t.Parallel()

	tx := New([]string{"a"}, nil, nil)
	action := tx.NextAction()
	assert.Equal(t, ActionWriteData, action.Kind)
	assert.Empty(t, action.Awaiting)
}
