package pairing

// State is the stage of one pairing session.
type State int

const (
	Init State = iota
	WaitingPin
	PinIssued
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case WaitingPin:
		return "waiting for pin"
	case PinIssued:
		return "pin issued"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// Terminal reports whether no further transition is expected, apart from the
// Failed to Confirmed upgrade.
func (s State) Terminal() bool {
	return s == Confirmed || s == Failed
}

// canAdvance enforces monotonic progress. Confirmed is final; Failed may only
// be upgraded to Confirmed.
func canAdvance(from, to State) bool {
	switch from {
	case Confirmed:
		return false
	case Failed:
		return to == Confirmed
	default:
		return to > from
	}
}
