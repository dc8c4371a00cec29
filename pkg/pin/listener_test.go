package pin

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackResolver targets l directly instead of broadcasting.
func loopbackResolver(l *Listener) *Resolver {
	return &Resolver{Port: l.Addr().Port, BroadcastAddr: "127.0.0.1"}
}

func TestResolvePin_MatchingAndNonMatching(t *testing.T) {
	l, err := ListenEphemeral("123456", "HostA")
	require.NoError(t, err)
	defer l.Stop()

	r := loopbackResolver(l)
	var (
		wg       sync.WaitGroup
		matched  string
		mismatch string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		matched = r.ResolvePin(context.Background(), "123456", 2*time.Second)
	}()
	go func() {
		defer wg.Done()
		mismatch = r.ResolvePin(context.Background(), "654321", 500*time.Millisecond)
	}()
	wg.Wait()

	assert.Equal(t, "127.0.0.1", matched)
	assert.Empty(t, mismatch)
}

func TestResolvePin_InvalidCodeDoesNoIO(t *testing.T) {
	observer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer observer.Close()

	r := &Resolver{Port: observer.LocalAddr().(*net.UDPAddr).Port, BroadcastAddr: "127.0.0.1"}
	for _, code := range []string{"", "12345", "1234567", "abcdef", "12 456"} {
		start := time.Now()
		assert.Empty(t, r.ResolvePin(context.Background(), code, 5*time.Second))
		assert.Less(t, time.Since(start), 50*time.Millisecond, "code %q", code)
	}

	observer.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 64)
	_, _, err = observer.ReadFromUDP(buf)
	require.Error(t, err, "no datagram may be sent for a malformed code")
}

func TestResolvePin_TimeoutWithoutListener(t *testing.T) {
	observer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer observer.Close()

	r := &Resolver{Port: observer.LocalAddr().(*net.UDPAddr).Port, BroadcastAddr: "127.0.0.1"}
	start := time.Now()
	assert.Empty(t, r.ResolvePin(context.Background(), "111111", 300*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)

	buf := make([]byte, 64)
	observer.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := observer.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "WHO_HAS_PIN 111111", string(buf[:n]))
}

func TestResolvePin_IgnoresGarbageReplies(t *testing.T) {
	fake, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer fake.Close()

	go func() {
		buf := make([]byte, 64)
		_, src, err := fake.ReadFromUDP(buf)
		if err != nil {
			return
		}
		fake.WriteToUDP([]byte("HELLO"), src)
		fake.WriteToUDP([]byte(Reply("HostB")), src)
	}()

	r := &Resolver{Port: fake.LocalAddr().(*net.UDPAddr).Port, BroadcastAddr: "127.0.0.1"}
	assert.Equal(t, "127.0.0.1", r.ResolvePin(context.Background(), "222222", 2*time.Second))
}

func TestResolvePin_ContextCancel(t *testing.T) {
	l, err := ListenEphemeral("123456", "HostA")
	require.NoError(t, err)
	defer l.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	assert.Empty(t, loopbackResolver(l).ResolvePin(ctx, "999999", 5*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestListener_StopIsIdempotentAndPrompt(t *testing.T) {
	l, err := ListenEphemeral("123456", "HostA")
	require.NoError(t, err)

	start := time.Now()
	l.Stop()
	assert.Less(t, time.Since(start), 2*DefaultPollInterval+200*time.Millisecond)

	assert.NotPanics(t, l.Stop)

	// Closed listener no longer answers.
	assert.Empty(t, loopbackResolver(l).ResolvePin(context.Background(), "123456", 300*time.Millisecond))
}

func TestListen_RejectsInvalidPin(t *testing.T) {
	_, err := Listen(ListenerConfig{Port: 0}, "12ab56", "HostA")
	assert.ErrorIs(t, err, ErrInvalidCode)

	stop, err := StartPinListener("1", "HostA")
	assert.ErrorIs(t, err, ErrInvalidCode)
	require.NotNil(t, stop)
	assert.NotPanics(t, stop)
}
