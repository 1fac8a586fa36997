package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"calibtrack/pkg/domain"
)

func counterAction(name string, value *int, delta int) Action {
	return Action{
		Description: name,
		Undo:        func() error { *value -= delta; return nil },
		Redo:        func() error { *value += delta; return nil },
	}
}

func TestJournalEvictsOldestBeyondCapacity(t *testing.T) {
	j := NewJournal(DefaultJournalCapacity, zerolog.Nop())
	value := 0
	for i := 1; i <= 11; i++ {
		value++
		j.Push(counterAction(fmt.Sprintf("step %d", i), &value, 1))
	}
	require.Equal(t, 10, j.Len())

	undone := 0
	for j.Undo() {
		undone++
	}
	require.Equal(t, 10, undone)
	require.Equal(t, 1, value, "the first action was evicted and cannot be undone")
	require.False(t, j.CanUndo())
	require.ErrorIs(t, j.TryUndo(), domain.ErrUndoUnavailable)
}

func TestJournalEmptyUndoIsNoop(t *testing.T) {
	j := NewJournal(0, zerolog.Nop())
	require.Equal(t, DefaultJournalCapacity, j.Capacity())
	require.False(t, j.Undo())
	require.False(t, j.Redo())
	require.Equal(t, "", j.LastDescription())
}

func TestJournalFailedUndoKeepsEntry(t *testing.T) {
	j := NewJournal(3, zerolog.Nop())
	boom := errors.New("boom")
	fail := true
	j.Push(Action{
		Description: "flaky",
		Undo: func() error {
			if fail {
				return boom
			}
			return nil
		},
		Redo: func() error { return nil },
	})

	require.ErrorIs(t, j.TryUndo(), boom)
	require.True(t, j.CanUndo())
	require.Equal(t, "flaky", j.LastDescription())

	fail = false
	require.NoError(t, j.TryUndo())
	require.False(t, j.CanUndo())
	require.True(t, j.CanRedo())
}

func TestJournalPanickingActionKeepsEntry(t *testing.T) {
	j := NewJournal(3, zerolog.Nop())
	j.Push(Action{
		Description: "explodes",
		Undo:        func() error { panic("snapshot missing") },
		Redo:        func() error { return nil },
	})

	err := j.TryUndo()
	require.Error(t, err)
	require.Contains(t, err.Error(), "snapshot missing")
	require.True(t, j.CanUndo())
	require.Equal(t, "explodes", j.LastDescription())

	j.Push(Action{
		Description: "redo explodes",
		Undo:        func() error { return nil },
		Redo:        func() error { panic("redo failed") },
	})
	require.True(t, j.Undo())
	require.NotPanics(t, func() { require.False(t, j.Redo()) })
	require.True(t, j.CanRedo())
	require.Equal(t, 1, j.RedoLen())
}

func TestJournalRedoClearedByPush(t *testing.T) {
	j := NewJournal(5, zerolog.Nop())
	value := 0
	value += 2
	j.Push(counterAction("add two", &value, 2))
	require.True(t, j.Undo())
	require.Equal(t, 0, value)
	require.True(t, j.CanRedo())

	value += 5
	j.Push(counterAction("add five", &value, 5))
	require.False(t, j.CanRedo())
	require.ErrorIs(t, j.TryRedo(), domain.ErrRedoUnavailable)
}

func TestJournalUndoRedoRoundTrip(t *testing.T) {
	j := NewJournal(5, zerolog.Nop())
	value := 0
	for _, d := range []int{1, 10, 100} {
		value += d
		j.Push(counterAction(fmt.Sprintf("add %d", d), &value, d))
	}
	require.Equal(t, []string{"add 100", "add 10", "add 1"}, j.Descriptions())
	require.True(t, j.Undo())
	require.True(t, j.Undo())
	require.Equal(t, 1, value)
	require.Equal(t, 2, j.RedoLen())
	require.True(t, j.Redo())
	require.Equal(t, 11, value)
	require.Equal(t, "add 10", j.LastDescription())

	j.Clear()
	require.Zero(t, j.Len())
	require.Zero(t, j.RedoLen())
}
