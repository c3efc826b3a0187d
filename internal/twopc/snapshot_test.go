package twopc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	t.Run("round-trips every reachable phase", func(t *testing.T) {
		var reachable []Transaction[string]

		tx := New([]string{"a", "b"}, "tx-1", "client-1")
		reachable = append(reachable, tx)

		tx, err := tx.Prepare()
		require.NoError(t, err)
		reachable = append(reachable, tx)

		committing, err := tx.Prepared("a")
		require.NoError(t, err)
		committing, err = committing.Prepared("b")
		require.NoError(t, err)
		reachable = append(reachable, committing)

		committed, err := committing.Committed("a")
		require.NoError(t, err)
		committed, err = committed.Committed("b")
		require.NoError(t, err)
		reachable = append(reachable, committed)

		rollingBack, err := tx.Aborted("b")
		require.NoError(t, err)
		reachable = append(reachable, rollingBack)

		aborted, err := rollingBack.RolledBack("a")
		require.NoError(t, err)
		aborted, err = aborted.RolledBack("b")
		require.NoError(t, err)
		reachable = append(reachable, aborted)

		for _, orig := range reachable {
			restored, err := Restore(orig.Snapshot(), orig.ID(), orig.Client())
			require.NoError(t, err, "phase %q", orig.Phase())

			assert.Equal(t, orig.Phase(), restored.Phase())
			assert.ElementsMatch(t, orig.Participants(), restored.Participants())
			assert.ElementsMatch(t, orig.Awaiting(), restored.Awaiting())
			assert.Equal(t, orig.NextAction().Kind, restored.NextAction().Kind)
			assert.ElementsMatch(t, orig.NextAction().Awaiting, restored.NextAction().Awaiting)
		}
	})

	t.Run("restored transaction keeps working", func(t *testing.T) {
		tx := New([]string{"a", "b"}, "tx-1", "client-1")
		tx, err := tx.Prepare()
		require.NoError(t, err)
		tx, err = tx.Prepared("a")
		require.NoError(t, err)

		restored, err := Restore(tx.Snapshot(), tx.ID(), tx.Client())
		require.NoError(t, err)

		restored, err = restored.Prepared("b")
		require.NoError(t, err)
		assert.Equal(t, PhaseCommitting, restored.Phase())
	})

	t.Run("survives a JSON round-trip", func(t *testing.T) {
		tx := New([]string{"a", "b"}, nil, nil)
		tx, err := tx.Prepare()
		require.NoError(t, err)
		tx, err = tx.Prepared("b")
		require.NoError(t, err)

		raw, err := json.Marshal(tx.Snapshot())
		require.NoError(t, err)

		var snap Snapshot[string]
		require.NoError(t, json.Unmarshal(raw, &snap))

		restored, err := Restore(snap, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, PhaseVoting, restored.Phase())
		assert.ElementsMatch(t, []string{"a"}, restored.Awaiting())
	})
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	t.Parallel()

	cases := map[string]Snapshot[string]{
		"unknown phase": {
			Phase:        Phase("limbo"),
			Participants: []string{"a", "b"},
		},
		"awaiting outside participant set": {
			Phase:        PhaseVoting,
			Participants: []string{"a", "b"},
			Awaiting:     []string{"x"},
		},
		"empty awaiting set while voting": {
			Phase:        PhaseVoting,
			Participants: []string{"a", "b"},
		},
		"awaiting set on a terminal phase": {
			Phase:        PhaseCommitted,
			Participants: []string{"a", "b"},
			Awaiting:     []string{"a"},
		},
		"awaiting set while interactive": {
			Phase:        PhaseInteractive,
			Participants: []string{"a", "b"},
			Awaiting:     []string{"a"},
		},
	}

	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Restore(snap, nil, nil)
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}
