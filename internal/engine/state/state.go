// Package state implements the DownloadState lifecycle (spec.md §3):
// Waiting → Downloading → (Completed | Failed | Cancelled), with Paused
// as an intermediate state reachable from and returning to Downloading.
// Grounded on the looser 4-state model in the teacher's
// internal/download/state/state.go, generalized to the explicit
// 6-state transition table this spec names.
package state

import (
	"sync"

	"github.com/rangedl/rangedl/internal/xerrors"
)

// State is one of the six lifecycle states named in spec.md §3.
type State int32

const (
	Waiting State = iota
	Downloading
	Paused
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case Downloading:
		return "Downloading"
	case Paused:
		return "Paused"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s is one of the terminal states
// (Completed, Failed, Cancelled).
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// validTransitions enumerates the transition table from spec.md §3.
var validTransitions = map[State]map[State]bool{
	Waiting:     {Downloading: true, Cancelled: true},
	Downloading: {Completed: true, Failed: true, Cancelled: true, Paused: true},
	Paused:      {Downloading: true, Cancelled: true},
}

// Machine guards a State behind a mutex and enforces the transition
// table. It is the single owner of a task/thread's lifecycle state.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine builds a Machine in the Waiting state, per spec.md §3.
func NewMachine() *Machine {
	return &Machine{state: Waiting}
}

// Get returns the current state.
func (m *Machine) Get() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition attempts to move to next, returning an error if the
// transition is invalid or the machine is already in a terminal state.
// No transition out of a terminal state is ever valid (spec.md §3).
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsTerminal() {
		return xerrors.New(xerrors.ArgumentOutOfRange, "no transition out of terminal state "+m.state.String())
	}
	allowed := validTransitions[m.state]
	if allowed == nil || !allowed[next] {
		return xerrors.New(xerrors.ArgumentOutOfRange, "invalid transition "+m.state.String()+" -> "+next.String())
	}
	m.state = next
	return nil
}
