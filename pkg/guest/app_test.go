package guest

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/remotePlay/internal/app_events"
	guestevents "github.com/rescp17/remotePlay/internal/app_events/guest"
	"github.com/rescp17/remotePlay/pkg/discovery"
	"github.com/rescp17/remotePlay/pkg/pairing"
	"github.com/rescp17/remotePlay/pkg/pin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var denHost = discovery.HostRecord{Name: "den", Address: "10.0.0.7", Port: discovery.ControlPort, Origin: discovery.OriginMDNS}

func staticDiscoverer(hosts ...discovery.HostRecord) *discovery.Discoverer {
	return discovery.NewDiscoverer(discovery.BrowserFunc(func(ctx context.Context, serviceType string) ([]discovery.HostRecord, error) {
		return hosts, nil
	}), nil)
}

func newTestApp(t *testing.T, f fakeClient) *App {
	t.Helper()
	return NewApp(AppConfig{
		Client:      f.client(t),
		Discoverer:  staticDiscoverer(denHost),
		Options:     DefaultStreamOptions(),
		PairTimeout: 10 * time.Second,
	})
}

// drainMessages returns the UI messages queued so far.
func drainMessages(a *App) []tea.Msg {
	var msgs []tea.Msg
	for {
		select {
		case m := <-a.UIMessages():
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func waitMsg[T tea.Msg](t *testing.T, a *App) T {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case m := <-a.UIMessages():
			if v, ok := m.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("no %T message", zero)
			return zero
		}
	}
}

func TestConnect_PairsUnpairedHostFirst(t *testing.T) {
	f := newFakeClient(t)
	a := newTestApp(t, f)

	require.NoError(t, a.Connect(context.Background(), denHost))
	assert.True(t, a.Client().IsConnected())

	msgs := drainMessages(a)
	assert.Contains(t, msgs, guestevents.PairingPinMsg{Target: "10.0.0.7", PIN: "4321"})
	assert.Contains(t, msgs, guestevents.PairingStateMsg{State: pairing.Confirmed})
	assert.Contains(t, msgs, guestevents.ConnectedMsg{Host: denHost})
	assert.False(t, a.PairingActive())
}

func TestConnect_SkipsPairingWhenPaired(t *testing.T) {
	f := newFakeClient(t)
	f.markPaired(t)
	a := newTestApp(t, f)

	require.NoError(t, a.Connect(context.Background(), denHost))
	for _, m := range drainMessages(a) {
		_, isPairing := m.(guestevents.PairingPinMsg)
		assert.False(t, isPairing, "no pairing for a paired host")
	}
	assert.True(t, a.Client().IsConnected())
}

func TestConnect_PairingFailure(t *testing.T) {
	f := newFakeClient(t)
	f.failPairing(t)
	a := newTestApp(t, f)

	err := a.Connect(context.Background(), denHost)
	assert.ErrorIs(t, err, ErrPairingFailed)
	assert.False(t, a.Client().IsConnected())

	var done *guestevents.PairingDoneMsg
	for _, m := range drainMessages(a) {
		if d, ok := m.(guestevents.PairingDoneMsg); ok {
			done = &d
		}
	}
	require.NotNil(t, done)
	assert.Equal(t, pairing.Failed, done.Outcome.State)
	assert.Equal(t, "4321", done.Outcome.PIN)
}

type blockingPairer struct {
	inner   *pairing.Controller
	started chan struct{}
}

func (b *blockingPairer) Start(ctx context.Context, target string) *pairing.Session {
	s := b.inner.Start(ctx, target)
	close(b.started)
	return s
}

func TestPair_OneSessionAtATime(t *testing.T) {
	f := newFakeClient(t)
	p := &blockingPairer{
		inner:   pairing.NewController(pairing.Config{Command: []string{"sh", "-c", "sleep 30", "client"}, TerminateGrace: 200 * time.Millisecond}),
		started: make(chan struct{}),
	}
	a := NewApp(AppConfig{Client: f.client(t), Discoverer: staticDiscoverer(), Pairer: p, Options: DefaultStreamOptions()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan pairing.Outcome, 1)
	go func() {
		o, _ := a.Pair(ctx, denHost)
		done <- o
	}()
	<-p.started
	require.Eventually(t, a.PairingActive, 2*time.Second, 10*time.Millisecond)

	_, err := a.Pair(context.Background(), denHost)
	assert.Error(t, err)

	cancel()
	select {
	case o := <-done:
		assert.Equal(t, pairing.Failed, o.State)
		assert.True(t, errors.Is(o.Err, context.Canceled))
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled pairing did not finish")
	}
}

func TestRun_WaitsForPairingOnShutdown(t *testing.T) {
	f := newFakeClient(t)
	p := &blockingPairer{
		inner:   pairing.NewController(pairing.Config{Command: []string{"sh", "-c", "sleep 30", "client"}, TerminateGrace: 200 * time.Millisecond}),
		started: make(chan struct{}),
	}
	a := NewApp(AppConfig{Client: f.client(t), Discoverer: staticDiscoverer(), Pairer: p, Options: DefaultStreamOptions()})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()
	go a.Pair(ctx, denHost)

	<-p.started
	var session *pairing.Session
	require.Eventually(t, func() bool {
		var ok bool
		session, ok = a.stateManager.Current()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case <-session.Done():
	default:
		t.Fatal("Run returned while the pairing session was still running")
	}
}

func TestResolvePin(t *testing.T) {
	l, err := pin.ListenEphemeral("135790", "den-1234abcd")
	require.NoError(t, err)
	defer l.Stop()

	a := NewApp(AppConfig{
		Client:     newFakeClient(t).client(t),
		Discoverer: staticDiscoverer(),
		Resolver:   &pin.Resolver{Port: l.Addr().Port, BroadcastAddr: "127.0.0.1"},
		PinTimeout: 2 * time.Second,
		Options:    DefaultStreamOptions(),
	})

	host, ok := a.ResolvePin(context.Background(), "135790")
	require.True(t, ok)
	assert.Equal(t, discovery.HostRecord{Name: "127.0.0.1", Address: "127.0.0.1", Port: discovery.ControlPort, Origin: discovery.OriginPIN}, host)

	_, ok = a.ResolvePin(context.Background(), "12345")
	assert.False(t, ok)
}

func TestRun_Events(t *testing.T) {
	f := newFakeClient(t)
	f.markPaired(t)
	a := newTestApp(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	a.AppEvents() <- guestevents.DiscoverEvent{}
	found := waitMsg[guestevents.FoundHostsMsg](t, a)
	assert.Equal(t, discovery.OriginMDNS, found.Source)
	assert.Equal(t, []discovery.HostRecord{denHost}, found.Hosts)

	a.AppEvents() <- guestevents.ResolvePinEvent{Code: "bad"}
	resolved := waitMsg[guestevents.PinResolvedMsg](t, a)
	assert.False(t, resolved.Found)

	a.AppEvents() <- guestevents.ConnectEvent{Host: denHost}
	assert.Equal(t, denHost, waitMsg[guestevents.ConnectedMsg](t, a).Host)

	a.AppEvents() <- guestevents.ConnectEvent{Host: denHost}
	errMsg := waitMsg[appevents.ErrorMsg](t, a)
	assert.Contains(t, errMsg.Err.Error(), ErrAlreadyConnected.Error())

	a.AppEvents() <- guestevents.DisconnectEvent{}
	assert.True(t, waitMsg[guestevents.DisconnectedMsg](t, a).Clean)
	assert.False(t, a.Client().IsConnected())

	cancel()
	require.NoError(t, <-done)
}
