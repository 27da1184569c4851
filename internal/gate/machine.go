package gate

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when a transition is not allowed from
// the machine's current state.
var ErrInvalidTransition = errors.New("invalid transition")

// State is what a page renders.
type State int

const (
	// StatePublic renders the page's public form. Initial state.
	StatePublic State = iota
	// StateLoading waits on a credential-scoped fetch.
	StateLoading
	// StateAuthenticatedEmpty renders the creation form or empty message.
	StateAuthenticatedEmpty
	// StateAuthenticatedPopulated renders the fetched resource.
	StateAuthenticatedPopulated
)

func (s State) String() string {
	switch s {
	case StatePublic:
		return "public"
	case StateLoading:
		return "loading"
	case StateAuthenticatedEmpty:
		return "authenticated-empty"
	case StateAuthenticatedPopulated:
		return "authenticated-populated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Machine is the render state of one page.
type Machine struct {
	mu     sync.Mutex
	state  State
	stable State
}

func NewMachine() *Machine {
	return &Machine{}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// stableState is the state Fail would return to.
func (m *Machine) stableState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stable
}

// Authenticate moves Public to Loading once a credential is present.
func (m *Machine) Authenticate() error {
	return m.transition("authenticate", func(from State) (State, bool) {
		return StateLoading, from == StatePublic
	})
}

// Refresh moves a rendered authenticated page back to Loading when the
// page is visited again.
func (m *Machine) Refresh() error {
	return m.transition("refresh", func(from State) (State, bool) {
		return StateLoading, isAuthenticated(from)
	})
}

// ActionCompleted moves a rendered authenticated page back to Loading after
// the page's own action (profile creation, diagnosis submission) finished.
func (m *Machine) ActionCompleted() error {
	return m.transition("action completed", func(from State) (State, bool) {
		return StateLoading, isAuthenticated(from)
	})
}

// Resolve ends Loading with the classification of the fetched resource.
func (m *Machine) Resolve(empty bool) error {
	return m.transition("resolve", func(from State) (State, bool) {
		if empty {
			return StateAuthenticatedEmpty, from == StateLoading
		}
		return StateAuthenticatedPopulated, from == StateLoading
	})
}

// Fail ends Loading without data and returns to the last stable state.
func (m *Machine) Fail() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLoading {
		return fmt.Errorf("%w: fail from %s", ErrInvalidTransition, m.state)
	}
	m.state = m.stable
	return nil
}

// CredentialChanged re-runs the page for a new credential: Loading when one
// is present, Public otherwise. Data rendered for the old credential is
// forgotten. Legal from every state.
func (m *Machine) CredentialChanged(present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stable = StatePublic
	if present {
		m.state = StateLoading
		return
	}
	m.state = StatePublic
}

// Reset returns to Public. Legal from every state.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StatePublic
	m.stable = StatePublic
}

func (m *Machine) transition(name string, next func(from State) (State, bool)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	to, ok := next(m.state)
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, name, m.state)
	}
	if m.state != StateLoading {
		m.stable = m.state
	}
	m.state = to
	return nil
}

func isAuthenticated(s State) bool {
	return s == StateAuthenticatedEmpty || s == StateAuthenticatedPopulated
}
