package supervisor

import (
	"fmt"
	"time"
)

// StateKind tags the lifecycle stage of a supervised process.
type StateKind int

const (
	NotStarted StateKind = iota
	Starting
	Running
	Exited
	Unknown
)

// State is a tagged variant; ExitCode is meaningful only for Exited.
type State struct {
	Kind     StateKind
	ExitCode int
}

func (s State) String() string {
	switch s.Kind {
	case NotStarted:
		return "not started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Exited:
		return fmt.Sprintf("exited(%d)", s.ExitCode)
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Alive reports whether the state still denotes a live process.
func (s State) Alive() bool {
	switch s.Kind {
	case Starting, Running:
		return true
	case NotStarted, Exited, Unknown:
		return false
	default:
		return false
	}
}

// advance moves s forward to next. Backward moves are ignored so a handle
// never leaves Exited.
func (s State) advance(next State) State {
	if next.Kind <= s.Kind && s.Kind != Unknown {
		return s
	}
	return next
}

// Handle is a snapshot of one spawned process.
type Handle struct {
	PID       int
	Argv      []string
	StartedAt time.Time
	State     State
}
