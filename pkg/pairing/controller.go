// Package pairing drives the client's interactive "pair" subcommand: it
// scrapes the one-time PIN from the subprocess output, reports it to the
// caller over a channel and decides whether the pairing took.
package pairing

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rescp17/remotePlay/pkg/supervisor"
)

const (
	DefaultTimeout        = 2 * time.Minute
	DefaultTerminateGrace = 2 * time.Second
	DefaultProbeTimeout   = 10 * time.Second

	eventBuffer = 8
)

var (
	ErrNoCommand = errors.New("no pairing command configured")
	ErrNoTarget  = errors.New("no pairing target")
)

// Process is a running pairing subprocess with merged output.
type Process interface {
	Output() io.ReadCloser
	Wait() int
	Terminate(grace time.Duration)
}

// Launcher starts argv in its own process group.
type Launcher func(argv []string, env map[string]string) (Process, error)

// SpawnLauncher launches through supervisor.Spawn.
func SpawnLauncher(argv []string, env map[string]string) (Process, error) {
	c, err := supervisor.Spawn(argv, env)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CapabilityLister lists the applications a host offers this client. Only a
// paired client gets a non-empty list.
type CapabilityLister interface {
	ListApps(ctx context.Context, host string) ([]string, error)
}

// AutoResponder submits a PIN to a host running on this machine so the user
// does not have to type it.
type AutoResponder interface {
	SubmitPIN(ctx context.Context, pin string) error
}

// Config configures a Controller.
type Config struct {
	// Command is the client invocation; "pair <target>" is appended.
	Command []string
	Env     map[string]string

	Launcher      Launcher
	Lister        CapabilityLister
	AutoResponder AutoResponder

	Timeout        time.Duration
	TerminateGrace time.Duration
	ProbeTimeout   time.Duration
}

// Controller runs pairing sessions.
type Controller struct {
	cfg Config
}

func NewController(cfg Config) *Controller {
	if cfg.Launcher == nil {
		cfg.Launcher = SpawnLauncher
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = DefaultTerminateGrace
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Controller{cfg: cfg}
}

// Session is one pairing attempt against a target address.
type Session struct {
	ID     string
	Target string

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	state   State
	outcome Outcome
}

func newSession(target string) *Session {
	return &Session{
		ID:     uuid.NewString(),
		Target: target,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		state:  Init,
	}
}

// Events yields the session's events in order and is closed after DoneEvent.
// A caller that never reads does not stall the session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the outcome is known.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session finishes.
func (s *Session) Wait() Outcome {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		slog.Warn("pairing event dropped", "session", s.ID, "event", fmt.Sprintf("%T", e))
	}
}

func (s *Session) advance(next State) bool {
	s.mu.Lock()
	if !canAdvance(s.state, next) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.mu.Unlock()
	slog.Info("pairing state changed", "session", s.ID, "target", s.Target, "state", next)
	s.emit(StateChangedEvent{SessionID: s.ID, State: next})
	return true
}

func (s *Session) finish(o Outcome) {
	o.SessionID = s.ID
	o.Target = s.Target
	o.State = s.State()
	s.mu.Lock()
	s.outcome = o
	s.mu.Unlock()
	s.emit(DoneEvent{Outcome: o})
	close(s.events)
	close(s.done)
}

// Start runs a pairing session in the background and returns immediately.
func (c *Controller) Start(ctx context.Context, target string) *Session {
	s := newSession(target)
	go c.run(ctx, s)
	return s
}

// Pair runs a pairing session and blocks until it finishes. Use Start from a
// goroutine that must stay responsive.
func (c *Controller) Pair(ctx context.Context, target string) Outcome {
	return c.Start(ctx, target).Wait()
}

func (c *Controller) run(ctx context.Context, s *Session) {
	var out Outcome
	defer func() { s.finish(out) }()

	if len(c.cfg.Command) == 0 {
		out.Err = ErrNoCommand
		s.advance(Failed)
		return
	}
	if s.Target == "" {
		out.Err = ErrNoTarget
		s.advance(Failed)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	argv := append(append([]string(nil), c.cfg.Command...), "pair", s.Target)
	proc, err := c.cfg.Launcher(argv, c.cfg.Env)
	if err != nil {
		slog.Error("failed to launch pairing", "session", s.ID, "target", s.Target, "error", err)
		out.Err = fmt.Errorf("launch pairing: %w", err)
		s.advance(Failed)
		return
	}
	s.advance(WaitingPin)

	stopWatch := context.AfterFunc(ctx, func() {
		slog.Warn("pairing interrupted", "session", s.ID, "error", ctx.Err())
		proc.Terminate(c.cfg.TerminateGrace)
	})
	confirmed := c.readOutput(ctx, s, proc, &out)
	stopWatch()
	out.ExitCode = proc.Wait()

	switch {
	case confirmed:
		s.advance(Confirmed)
		return
	case ctx.Err() != nil:
		out.Err = ctx.Err()
		s.advance(Failed)
		return
	case out.ExitCode == 0:
		s.advance(Confirmed)
		return
	}

	s.advance(Failed)
	out.Err = fmt.Errorf("pairing exited with code %d", out.ExitCode)
	if c.probe(s) {
		out.Masked = true
		out.Err = nil
		s.advance(Confirmed)
	}
}

// readOutput consumes the subprocess output until EOF or the success line,
// reporting whether the success line was seen.
func (c *Controller) readOutput(ctx context.Context, s *Session, proc Process, out *Outcome) bool {
	scanner := bufio.NewScanner(proc.Output())
	for scanner.Scan() {
		line := scanner.Text()
		slog.Debug("pairing output", "session", s.ID, "line", line)

		if out.PIN == "" {
			if pin := extractPIN(line); pin != "" {
				out.PIN = pin
				s.advance(PinIssued)
				s.emit(PinIssuedEvent{SessionID: s.ID, Target: s.Target, PIN: pin})
				c.autoRespond(ctx, s, pin)
			}
		}
		if isSuccessLine(line) {
			proc.Terminate(c.cfg.TerminateGrace)
			return true
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("pairing output read failed", "session", s.ID, "error", err)
	}
	return false
}

// autoRespond forwards the PIN to a host on this machine without blocking the
// read loop.
func (c *Controller) autoRespond(ctx context.Context, s *Session, pin string) {
	if c.cfg.AutoResponder == nil || !isLoopback(s.Target) {
		return
	}
	go func() {
		if err := c.cfg.AutoResponder.SubmitPIN(ctx, pin); err != nil {
			slog.Warn("automatic pin submission failed", "session", s.ID, "error", err)
			return
		}
		slog.Info("pin submitted to local host", "session", s.ID)
	}()
}

// probe asks the target for its application list. Some client builds close
// their output right after pairing without reporting success; a working
// listing means the pairing took anyway.
func (c *Controller) probe(s *Session) bool {
	if c.cfg.Lister == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProbeTimeout)
	defer cancel()
	apps, err := c.cfg.Lister.ListApps(ctx, s.Target)
	if err != nil || len(apps) == 0 {
		slog.Info("pairing failure confirmed", "session", s.ID, "target", s.Target, "error", err)
		return false
	}
	slog.Info("pairing succeeded despite client failure", "session", s.ID, "target", s.Target, "apps", len(apps))
	return true
}
