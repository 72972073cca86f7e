// Package ledger tracks the client's own recent creations so undo and
// redo requests can reference them. It mirrors only self-authored
// actions; the authoritative shared history lives on the server.
package ledger

import (
	"encoding/json"
	"sync"
	"time"

	"inkboard/pkg/types"
)

// Entry is one self-authored creation. Payload holds the original
// outbound creation frame verbatim for redo replay.
type Entry struct {
	ID        string
	Kind      types.ObjectKind
	Payload   json.RawMessage
	Timestamp time.Time
}

// Ledger is a two-stack undo/redo history. An entry is on at most one
// stack at a time.
type Ledger struct {
	mu   sync.Mutex
	undo []Entry
	redo []Entry
}

func New() *Ledger {
	return &Ledger{}
}

// Push records a fresh creation. Any previously undone history is
// invalidated: the redo stack is cleared.
func (l *Ledger) Push(id string, kind types.ObjectKind, payload json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.undo = append(l.undo, Entry{
		ID:        id,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	l.redo = nil
}

// Undo moves the most recent entry to the redo stack and returns it.
// The second return is false when there is nothing to undo.
func (l *Ledger) Undo() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.undo) == 0 {
		return Entry{}, false
	}
	entry := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, entry)
	return entry, true
}

// Redo moves the top redone entry back to the undo stack and returns
// it. The second return is false when there is nothing to redo.
func (l *Ledger) Redo() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.redo) == 0 {
		return Entry{}, false
	}
	entry := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, entry)
	return entry, true
}

// Depths returns the undo and redo stack sizes.
func (l *Ledger) Depths() (undo, redo int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo), len(l.redo)
}

// Reset drops both stacks. Called on session teardown.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo = nil
	l.redo = nil
}
