package core

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"calibtrack/pkg/domain"
)

// DefaultJournalCapacity bounds the undo history.
const DefaultJournalCapacity = 10

// Action is one reversible mutation. Undo and Redo close over value
// snapshots taken when the action was recorded.
type Action struct {
	Description string
	Undo        func() error
	Redo        func() error
}

// Journal is a bounded undo stack with a symmetric redo stack. Recording a
// new action clears redo; exceeding capacity evicts the oldest entry.
type Journal struct {
	mu       sync.Mutex
	capacity int
	undo     []Action
	redo     []Action
	log      zerolog.Logger
}

// NewJournal returns a journal holding at most capacity actions per stack.
func NewJournal(capacity int, logger zerolog.Logger) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &Journal{capacity: capacity, log: logger}
}

// Capacity reports the configured bound.
func (j *Journal) Capacity() int { return j.capacity }

// Push records an action.
func (j *Journal) Push(a Action) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo = pushBounded(j.undo, a, j.capacity)
	j.redo = nil
}

// Undo reverts the most recent action and reports whether it did.
func (j *Journal) Undo() bool { return j.TryUndo() == nil }

// Redo reapplies the most recently undone action and reports whether it did.
func (j *Journal) Redo() bool { return j.TryRedo() == nil }

// TryUndo reverts the most recent action. When the action's Undo fails or
// panics the entry stays on the stack and the error is returned.
func (j *Journal) TryUndo() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.undo) == 0 {
		return domain.ErrUndoUnavailable
	}
	top := j.undo[len(j.undo)-1]
	if err := invoke(top.Undo); err != nil {
		j.log.Error().Err(err).Str("action", top.Description).Msg("undo failed")
		return err
	}
	j.undo = j.undo[:len(j.undo)-1]
	j.redo = pushBounded(j.redo, top, j.capacity)
	return nil
}

// TryRedo reapplies the most recently undone action. When the action's Redo
// fails or panics the entry stays on the redo stack and the error is returned.
func (j *Journal) TryRedo() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.redo) == 0 {
		return domain.ErrRedoUnavailable
	}
	top := j.redo[len(j.redo)-1]
	if err := invoke(top.Redo); err != nil {
		j.log.Error().Err(err).Str("action", top.Description).Msg("redo failed")
		return err
	}
	j.redo = j.redo[:len(j.redo)-1]
	j.undo = pushBounded(j.undo, top, j.capacity)
	return nil
}

// invoke runs an undo or redo closure, turning a panic into an error.
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("journal action panicked: %v", r)
		}
	}()
	return fn()
}

// CanUndo reports whether an action is available to undo.
func (j *Journal) CanUndo() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.undo) > 0
}

// CanRedo reports whether an action is available to redo.
func (j *Journal) CanRedo() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.redo) > 0
}

// Len returns the undo stack depth.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.undo)
}

// RedoLen returns the redo stack depth.
func (j *Journal) RedoLen() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.redo)
}

// LastDescription returns the description of the next action to undo, or
// "" when the stack is empty.
func (j *Journal) LastDescription() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.undo) == 0 {
		return ""
	}
	return j.undo[len(j.undo)-1].Description
}

// Descriptions lists undo entries, most recent first.
func (j *Journal) Descriptions() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.undo))
	for i := len(j.undo) - 1; i >= 0; i-- {
		out = append(out, j.undo[i].Description)
	}
	return out
}

// Clear drops both stacks.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo = nil
	j.redo = nil
}

func pushBounded(stack []Action, a Action, capacity int) []Action {
	stack = append(stack, a)
	if over := len(stack) - capacity; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}
