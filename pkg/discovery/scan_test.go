package discovery

import (
	"context"
	"errors"
	"net"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noReverseDNS(context.Context, string) ([]string, error) {
	return nil, errors.New("no PTR record")
}

// listenOn opens a TCP listener on every ip using one shared port.
func listenOn(t *testing.T, ips ...string) int {
	t.Helper()
	first, err := net.Listen("tcp", net.JoinHostPort(ips[0], "0"))
	require.NoError(t, err)
	t.Cleanup(func() { first.Close() })
	port := first.Addr().(*net.TCPAddr).Port

	for _, ip := range ips[1:] {
		l, err := net.Listen("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
	}
	return port
}

func TestScanner_Targets(t *testing.T) {
	s := &Scanner{LocalIP: func() (net.IP, error) { return net.ParseIP("192.168.7.42"), nil }}
	targets := s.Targets()

	require.Len(t, targets, 255)
	assert.Equal(t, "127.0.0.1", targets[0])
	assert.Equal(t, "192.168.7.1", targets[1])
	assert.Equal(t, "192.168.7.254", targets[254])
}

func TestScanner_TargetsWithoutLocalIP(t *testing.T) {
	s := &Scanner{LocalIP: func() (net.IP, error) { return nil, errors.New("offline") }}
	assert.Equal(t, []string{"127.0.0.1"}, s.Targets())
}

func TestScanner_FindsExactlyListeningHosts(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs the whole 127.0.0.0/8 routed to loopback")
	}
	listening := []string{"127.0.0.2", "127.0.0.3", "127.0.0.4"}
	port := listenOn(t, listening...)

	s := &Scanner{
		Port:         port,
		Workers:      DefaultScanWorkers,
		ProbeTimeout: DefaultProbeTimeout,
		LocalIP:      func() (net.IP, error) { return net.ParseIP("127.0.0.9"), nil },
		LookupAddr:   noReverseDNS,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hosts := s.Scan(ctx)

	var got []string
	for _, h := range hosts {
		got = append(got, h.Address)
		assert.Equal(t, h.Address, h.Name, "name falls back to the IP literal")
		assert.Equal(t, OriginManual, h.Origin)
		assert.Equal(t, port, h.Port)
	}
	assert.ElementsMatch(t, listening, got)
}

func TestScanner_ReverseDNSName(t *testing.T) {
	port := listenOn(t, "127.0.0.1")
	s := &Scanner{
		Port:    port,
		LocalIP: func() (net.IP, error) { return nil, errors.New("offline") },
		LookupAddr: func(context.Context, string) ([]string, error) {
			return []string{"gaming-pc.lan."}, nil
		},
	}

	hosts := s.Scan(context.Background())
	require.Len(t, hosts, 1)
	assert.Equal(t, "gaming-pc.lan", hosts[0].Name)
	assert.Equal(t, "127.0.0.1", hosts[0].Address)
}

func TestScanner_CancelledContext(t *testing.T) {
	s := &Scanner{
		LocalIP:    func() (net.IP, error) { return net.ParseIP("10.255.255.1"), nil },
		LookupAddr: noReverseDNS,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.Empty(t, s.Scan(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
}
