package pairing

// Event is delivered on Session.Events. The concrete types are PinIssuedEvent,
// StateChangedEvent and DoneEvent.
type Event interface {
	isPairingEvent()
}

// PinIssuedEvent carries the PIN the client printed for the user to enter on
// the host. It is sent at most once per session.
type PinIssuedEvent struct {
	SessionID string
	Target    string
	PIN       string
}

type StateChangedEvent struct {
	SessionID string
	State     State
}

// DoneEvent is always the last event before the channel closes.
type DoneEvent struct {
	Outcome Outcome
}

func (PinIssuedEvent) isPairingEvent()    {}
func (StateChangedEvent) isPairingEvent() {}
func (DoneEvent) isPairingEvent()         {}

// Outcome summarizes a finished session.
type Outcome struct {
	SessionID string
	Target    string
	State     State
	PIN       string
	ExitCode  int
	// Masked is set when the client reported failure but a follow-up
	// capability listing against the target succeeded.
	Masked bool
	Err    error
}

// Paired reports whether the session ended Confirmed.
func (o Outcome) Paired() bool {
	return o.State == Confirmed
}
