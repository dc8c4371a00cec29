package appevents

import tea "github.com/charmbracelet/bubbletea"

// AppEvent is a marker interface for events sent from a UI to an App's logic controller.
// It uses an unexported method to ensure that only types embedding Event
// can satisfy the interface, providing compile-time safety.
type AppEvent interface {
	isAppEvent()
}

// Event is a struct that can be embedded in other event types to satisfy the AppEvent interface.
type Event struct{}

// isAppEvent is the marker method that makes a struct an AppEvent.
func (Event) isAppEvent() {}

// --- UI Messages (from App to UI) ---

// ErrorMsg reports a failed operation.
type ErrorMsg struct {
	Err error
}

// StatusUpdateMsg is a free-form progress line.
type StatusUpdateMsg struct {
	Message string
}

// Listen returns a command that waits for the next message on ch, so a
// bubbletea program can consume App.UIMessages. It yields nil once ch is closed.
func Listen(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
