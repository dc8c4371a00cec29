package app

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/rescp17/remotePlay/pkg/pairing"
)

var ErrSessionActive = errors.New("a pairing session is already in progress")

// StateManager tracks the single pairing session a guest may run at a time
// in a concurrent-safe manner.
type StateManager struct {
	mu      sync.Mutex
	session *pairing.Session // Holds the *single* active session
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// Begin registers s as the active session. It fails while an earlier
// session is still running.
func (m *StateManager) Begin(s *pairing.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil && !finished(m.session) {
		slog.Warn("Failed to begin pairing session", "error", ErrSessionActive, "active", m.session.ID)
		return ErrSessionActive
	}
	m.session = s
	return nil
}

// Current returns the active session, if it is still running.
func (m *StateManager) Current() (*pairing.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || finished(m.session) {
		return nil, false
	}
	return m.session, true
}

// End forgets the session with the given ID.
func (m *StateManager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil && m.session.ID == id {
		m.session = nil
	}
}

// WaitForDone returns a channel that is closed when the active session
// finishes, or an already closed channel when there is none.
func (m *StateManager) WaitForDone() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.session.Done()
}

func finished(s *pairing.Session) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}
