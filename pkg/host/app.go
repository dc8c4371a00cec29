// Package host controls the streaming server on the machine that shares its
// screen: the server process, its configuration file and the PIN hosting
// session that lets guests find it.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rescp17/remotePlay/api"
	appevents "github.com/rescp17/remotePlay/internal/app_events"
	hostevents "github.com/rescp17/remotePlay/internal/app_events/host"
	"github.com/rescp17/remotePlay/pkg/concurrency"
	"github.com/rescp17/remotePlay/pkg/pin"
	"github.com/rescp17/remotePlay/pkg/supervisor"
)

const (
	DefaultBinary  = "sunshine"
	ConfigFileName = "sunshine.conf"
	PIDFileName    = "sunshine.pid"
)

var ErrServerNotRunning = errors.New("streaming server is not running")

// Config configures the host App.
type Config struct {
	// Binary is the server executable; its base name is also what stray
	// instances are matched by.
	Binary string
	// Dir is the server's working directory holding its config and PID file.
	Dir           string
	StartupWindow time.Duration
	GracePeriod   time.Duration
	PinPort       int

	WebPort     int
	WebUser     string
	WebPassword string

	Output io.Writer
	Table  supervisor.ProcessTable
}

// Session is an active hosting session.
type Session struct {
	PIN       string
	Label     string
	StartedAt time.Time
}

// Status summarizes the host for a CLI or UI.
type Status struct {
	supervisor.Status
	ConfigPath string
	Label      string
	Hosting    bool
	PIN        string
}

// App is the main application logic controller for the host.
type App struct {
	cfg        Config
	guard      *concurrency.ConcurrencyGuard
	server     *supervisor.Supervisor
	web        *api.Client
	label      string
	uiMessages chan tea.Msg
	appEvents  chan appevents.AppEvent

	listen func(code, label string) (*pin.Listener, error)

	mu       sync.Mutex
	session  *Session
	listener *pin.Listener
}

// NewApp creates a host application. Construction reconciles with a server
// left running by an earlier instance.
func NewApp(cfg Config) *App {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	label := hostLabel()
	a := &App{
		cfg:   cfg,
		guard: concurrency.NewConcurrencyGuard(),
		server: supervisor.New(supervisor.Config{
			Name:          "sunshine",
			BinaryName:    filepath.Base(cfg.Binary),
			PIDFile:       filepath.Join(cfg.Dir, PIDFileName),
			Dir:           cfg.Dir,
			StartupWindow: cfg.StartupWindow,
			GracePeriod:   cfg.GracePeriod,
			Output:        cfg.Output,
			Table:         cfg.Table,
		}),
		web:        api.NewClient(cfg.WebPort, cfg.WebUser, cfg.WebPassword, label),
		label:      label,
		uiMessages: make(chan tea.Msg, 10),
		appEvents:  make(chan appevents.AppEvent),
	}
	a.listen = func(code, label string) (*pin.Listener, error) {
		return pin.Listen(pin.ListenerConfig{Port: cfg.PinPort}, code, label)
	}
	return a
}

// hostLabel names this machine in PIN replies: "<hostname>-<8 hex>".
func hostLabel() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "host"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the UI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

func (a *App) Label() string {
	return a.label
}

func (a *App) ConfigPath() string {
	return filepath.Join(a.cfg.Dir, ConfigFileName)
}

// Run starts the application's main event loop. It ends the hosting session
// on return; the server keeps running.
func (a *App) Run(ctx context.Context) error {
	defer a.StopHosting()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-a.appEvents:
			switch e := event.(type) {
			case hostevents.StartServerEvent:
				go a.handleStartServer()
			case hostevents.StopServerEvent:
				go a.handleStopServer()
			case hostevents.StartHostingEvent:
				a.handleStartHosting(e.PIN)
			case hostevents.StopHostingEvent:
				a.StopHosting()
				a.notify(hostevents.HostingStoppedMsg{})
			case hostevents.ConfigureEvent:
				if err := a.Configure(e.Settings); err != nil {
					a.sendAndLogError("Failed to write server configuration", err)
				} else {
					a.notify(hostevents.ConfiguredMsg{Path: a.ConfigPath()})
				}
			default:
				slog.Warn("Received unhandled app event", "event", event)
			}
		}
	}
}

func (a *App) handleStartServer() {
	ok, diag := a.StartServer()
	if !ok {
		a.notify(hostevents.ServerStartFailedMsg{Diagnostic: diag})
		return
	}
	a.notify(hostevents.ServerStartedMsg{PID: a.server.Status().PID})
}

func (a *App) handleStopServer() {
	clean, err := a.StopServer()
	if err != nil {
		a.sendAndLogError("Failed to stop server", err)
		return
	}
	a.notify(hostevents.ServerStoppedMsg{Clean: clean})
}

func (a *App) handleStartHosting(code string) {
	s, err := a.StartHosting(code)
	if err != nil {
		a.sendAndLogError("Failed to start hosting session", err)
		return
	}
	a.notify(hostevents.HostingStartedMsg{PIN: s.PIN, Label: s.Label})
}

// notify hands msg to the UI without blocking when no UI is attached.
func (a *App) notify(msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	default:
		slog.Debug("ui message dropped", "msg", fmt.Sprintf("%T", msg))
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.notify(appevents.ErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

// Configure writes settings to the server's configuration file as sorted
// "key = value" lines, replacing its content.
func (a *App) Configure(settings map[string]string) error {
	if err := os.MkdirAll(a.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("create server dir: %w", err)
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s = %s\n", k, settings[k])
	}
	if err := os.WriteFile(a.ConfigPath(), []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", a.ConfigPath(), err)
	}
	slog.Info("server configuration written", "path", a.ConfigPath(), "keys", len(keys))
	return nil
}

// ensureConfig creates an empty configuration file so the server starts
// with its own defaults.
func (a *App) ensureConfig() error {
	if _, err := os.Stat(a.ConfigPath()); err == nil {
		return nil
	}
	return a.Configure(nil)
}

// StartServer launches the server with its configuration file. The
// diagnostic carries the server's output when it fails to come up.
func (a *App) StartServer() (bool, string) {
	var ok bool
	var diag string
	err := a.guard.Execute(func() error {
		if err := a.ensureConfig(); err != nil {
			return err
		}
		ok, diag = a.server.Start([]string{a.cfg.Binary, a.ConfigPath()}, serverEnv(systemProbe()))
		return nil
	})
	if err != nil {
		slog.Error("server start aborted", "error", err)
		return false, err.Error()
	}
	return ok, diag
}

// StopServer terminates the server. Clean is false when the process
// survived escalation.
func (a *App) StopServer() (bool, error) {
	var clean bool
	err := a.guard.Execute(func() error {
		clean = a.server.Stop()
		return nil
	})
	return clean, err
}

// RestartServer stops and starts the server.
func (a *App) RestartServer() (bool, string) {
	if _, err := a.StopServer(); err != nil {
		return false, err.Error()
	}
	return a.StartServer()
}

func (a *App) IsRunning() bool {
	return a.server.IsRunning()
}

// StartHosting answers PIN lookups for code until StopHosting. An empty code
// generates one. A running session is replaced.
func (a *App) StartHosting(code string) (Session, error) {
	if code == "" {
		generated, err := pin.Generate()
		if err != nil {
			return Session{}, err
		}
		code = generated
	}
	if !pin.ValidCode(code) {
		return Session{}, pin.ErrInvalidCode
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		a.listener.Stop()
		a.listener, a.session = nil, nil
	}
	l, err := a.listen(code, a.label)
	if err != nil {
		return Session{}, err
	}
	a.listener = l
	a.session = &Session{PIN: code, Label: a.label, StartedAt: time.Now()}
	slog.Info("hosting session started", "label", a.label)
	return *a.session, nil
}

// StopHosting ends the hosting session, if any.
func (a *App) StopHosting() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return
	}
	a.listener.Stop()
	a.listener, a.session = nil, nil
	slog.Info("hosting session stopped")
}

// Hosting returns the active session.
func (a *App) Hosting() (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return Session{}, false
	}
	return *a.session, true
}

// SubmitPIN completes a pairing request from a client on this machine
// through the server's web API.
func (a *App) SubmitPIN(ctx context.Context, code string) error {
	if !a.IsRunning() {
		return ErrServerNotRunning
	}
	return a.web.SubmitPIN(ctx, code)
}

func (a *App) Status() Status {
	st := Status{
		Status:     a.server.Status(),
		ConfigPath: a.ConfigPath(),
		Label:      a.label,
	}
	if s, ok := a.Hosting(); ok {
		st.Hosting, st.PIN = true, s.PIN
	}
	return st
}

// Serve starts the server when needed, opens a hosting session for code and
// blocks until ctx is done, then stops both. Progress is reported on
// UIMessages.
func (a *App) Serve(ctx context.Context, code string) error {
	if !a.IsRunning() {
		ok, diag := a.StartServer()
		if !ok {
			a.notify(hostevents.ServerStartFailedMsg{Diagnostic: diag})
			return fmt.Errorf("%w: %s", supervisor.ErrLaunchFailed, diag)
		}
		a.notify(hostevents.ServerStartedMsg{PID: a.server.Status().PID})
	}
	s, err := a.StartHosting(code)
	if err != nil {
		a.StopServer()
		return err
	}
	a.notify(hostevents.HostingStartedMsg{PIN: s.PIN, Label: s.Label})

	<-ctx.Done()
	a.StopHosting()
	a.notify(hostevents.HostingStoppedMsg{})
	clean, err := a.StopServer()
	if err != nil {
		return err
	}
	a.notify(hostevents.ServerStoppedMsg{Clean: clean})
	return nil
}
