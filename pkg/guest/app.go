package guest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/remotePlay/internal/app"
	appevents "github.com/rescp17/remotePlay/internal/app_events"
	guestevents "github.com/rescp17/remotePlay/internal/app_events/guest"
	"github.com/rescp17/remotePlay/pkg/concurrency"
	"github.com/rescp17/remotePlay/pkg/discovery"
	"github.com/rescp17/remotePlay/pkg/pairing"
	"github.com/rescp17/remotePlay/pkg/pin"
	"golang.org/x/sync/errgroup"
)

var ErrPairingFailed = errors.New("pairing failed")

// Pairer runs pairing sessions; *pairing.Controller implements it.
type Pairer interface {
	Start(ctx context.Context, target string) *pairing.Session
}

// AppConfig wires the guest App.
type AppConfig struct {
	Client     *Client
	Discoverer *discovery.Discoverer
	Resolver   *pin.Resolver
	// Pairer defaults to Client.PairingController(PairTimeout, nil).
	Pairer  Pairer
	Options StreamOptions

	DiscoveryTimeout time.Duration
	PinTimeout       time.Duration
	PairTimeout      time.Duration
}

// App is the main application logic controller for the guest.
type App struct {
	client           *Client
	discoverer       *discovery.Discoverer
	resolver         *pin.Resolver
	pairer           Pairer
	options          StreamOptions
	discoveryTimeout time.Duration
	pinTimeout       time.Duration

	guard        *concurrency.ConcurrencyGuard
	stateManager *app.StateManager
	uiMessages   chan tea.Msg            // App -> UI
	appEvents    chan appevents.AppEvent // UI -> App
	flowWG       sync.WaitGroup
}

// NewApp creates a new guest application instance.
func NewApp(cfg AppConfig) *App {
	if cfg.Discoverer == nil {
		cfg.Discoverer = discovery.NewDiscoverer(nil, nil)
	}
	if cfg.Resolver == nil {
		cfg.Resolver = pin.NewResolver()
	}
	if cfg.Pairer == nil {
		cfg.Pairer = cfg.Client.PairingController(cfg.PairTimeout, nil)
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = discovery.DefaultTimeout
	}
	if cfg.PinTimeout <= 0 {
		cfg.PinTimeout = pin.DefaultResolveTimeout
	}
	return &App{
		client:           cfg.Client,
		discoverer:       cfg.Discoverer,
		resolver:         cfg.Resolver,
		pairer:           cfg.Pairer,
		options:          cfg.Options,
		discoveryTimeout: cfg.DiscoveryTimeout,
		pinTimeout:       cfg.PinTimeout,
		guard:            concurrency.NewConcurrencyGuard(),
		stateManager:     app.NewStateManager(),
		uiMessages:       make(chan tea.Msg, 10),
		appEvents:        make(chan appevents.AppEvent),
	}
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the UI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Client returns the wrapped streaming client.
func (a *App) Client() *Client {
	return a.client
}

// Run starts the application's main event loop.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				// Let running connect flows and the pairing session observe
				// the cancellation and finish.
				a.flowWG.Wait()
				<-a.stateManager.WaitForDone()
				return nil
			case event := <-a.appEvents:
				switch e := event.(type) {
				case guestevents.DiscoverEvent:
					a.startDiscovery(ctx)
				case guestevents.ResolvePinEvent:
					a.startResolve(ctx, e.Code)
				case guestevents.ConnectEvent:
					a.StartConnect(ctx, e.Host)
				case guestevents.DisconnectEvent:
					a.notify(guestevents.DisconnectedMsg{Clean: a.Disconnect()})
				default:
					slog.Warn("Received unhandled app event", "event", event)
				}
			}
		}
	})
	return g.Wait()
}

func (a *App) startDiscovery(ctx context.Context) {
	results := a.Discover(ctx)
	go func() {
		for r := range results {
			a.notify(guestevents.FoundHostsMsg{Source: r.Source, Hosts: r.Hosts})
		}
	}()
}

func (a *App) startResolve(ctx context.Context, code string) {
	go func() {
		host, ok := a.ResolvePin(ctx, code)
		a.notify(guestevents.PinResolvedMsg{Code: code, Host: host, Found: ok})
	}()
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

// Discover looks for hosts; see discovery.Discoverer.
func (a *App) Discover(ctx context.Context) <-chan discovery.Result {
	return a.discoverer.Discover(ctx, a.discoveryTimeout)
}

// ResolvePin finds the host announcing code. ok is false when none answered
// within the PIN timeout or code is malformed.
func (a *App) ResolvePin(ctx context.Context, code string) (discovery.HostRecord, bool) {
	addr := a.resolver.ResolvePin(ctx, code, a.pinTimeout)
	if addr == "" {
		slog.Info("no host answered pin lookup")
		return discovery.HostRecord{}, false
	}
	host := discovery.HostRecord{
		Name:    addr,
		Address: discovery.FormatAddress(addr, ""),
		Port:    discovery.ControlPort,
		Origin:  discovery.OriginPIN,
	}
	slog.Info("pin resolved", "address", host.Address)
	return host, true
}

// Pair runs one pairing session against host, forwarding its events to
// UIMessages, and blocks until it ends.
func (a *App) Pair(ctx context.Context, host discovery.HostRecord) (pairing.Outcome, error) {
	if a.PairingActive() {
		return pairing.Outcome{}, app.ErrSessionActive
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := a.pairer.Start(ctx, host.Address)
	if err := a.stateManager.Begin(s); err != nil {
		cancel()
		drain(s)
		return pairing.Outcome{}, err
	}
	defer a.stateManager.End(s.ID)

	for e := range s.Events() {
		switch ev := e.(type) {
		case pairing.PinIssuedEvent:
			a.notify(guestevents.PairingPinMsg{Target: ev.Target, PIN: ev.PIN})
		case pairing.StateChangedEvent:
			a.notify(guestevents.PairingStateMsg{State: ev.State})
		case pairing.DoneEvent:
			a.notify(guestevents.PairingDoneMsg{Outcome: ev.Outcome})
		}
	}
	return s.Wait(), nil
}

func drain(s *pairing.Session) {
	for range s.Events() {
	}
}

// PairingActive reports whether a pairing session is running.
func (a *App) PairingActive() bool {
	_, ok := a.stateManager.Current()
	return ok
}

// Connect pairs with host when it does not list any application for this
// client yet, then starts the stream.
func (a *App) Connect(ctx context.Context, host discovery.HostRecord) error {
	return a.guard.ExecuteWithContext(ctx, func(ctx context.Context) error {
		apps, err := a.client.ListApps(ctx, host.Address)
		if err != nil || len(apps) == 0 {
			slog.Info("host not paired yet, starting pairing", "host", host.Address, "error", err)
			outcome, err := a.Pair(ctx, host)
			if err != nil {
				return err
			}
			if !outcome.Paired() {
				return fmt.Errorf("%w: %v", ErrPairingFailed, outcome.Err)
			}
		}

		a.notify(appevents.StatusUpdateMsg{Message: "Starting stream..."})
		ok, diag := a.client.Connect(host, a.options)
		if !ok {
			a.notify(guestevents.ConnectFailedMsg{Host: host, Diagnostic: diag})
			return fmt.Errorf("stream to %s did not start: %s", host.Address, diag)
		}
		a.notify(guestevents.ConnectedMsg{Host: host})
		return nil
	})
}

// StartConnect runs Connect in the background.
func (a *App) StartConnect(ctx context.Context, host discovery.HostRecord) {
	a.flowWG.Add(1)
	go func() {
		defer a.flowWG.Done()
		err := a.Connect(ctx, host)
		if err != nil {
			if errors.Is(err, concurrency.ErrBusy) {
				a.sendAndLogError("A connection is already in progress", err)
			} else {
				a.sendAndLogError("Connection failed", err)
			}
		}
	}()
}

// Disconnect stops the stream.
func (a *App) Disconnect() bool {
	return a.client.Disconnect()
}
