package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/brutella/dnssd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func announce(ctx context.Context, t *testing.T, name, serviceType string, port int) {
	t.Helper()
	svc, err := dnssd.NewService(dnssd.Config{
		Name:   name,
		Type:   serviceType,
		Domain: DefaultDomain,
		Port:   port,
	})
	require.NoError(t, err)

	rp, err := dnssd.NewResponder()
	require.NoError(t, err)
	_, err = rp.Add(svc)
	require.NoError(t, err)

	go func() {
		_ = rp.Respond(ctx)
	}()
}

func TestNativeBrowser_Browse(t *testing.T) {
	// Skip mDNS tests in CI environment as they may be unreliable
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceType := "_remoteplay-test._tcp"
	announce(ctx, t, "test-host", serviceType, 47989)
	time.Sleep(300 * time.Millisecond)

	browseCtx, browseCancel := context.WithTimeout(ctx, 3*time.Second)
	defer browseCancel()
	hosts, err := (&NativeBrowser{}).Browse(browseCtx, serviceType)
	require.NoError(t, err)
	require.NotEmpty(t, hosts)

	assert.Equal(t, "test-host", hosts[0].Name)
	assert.Equal(t, 47989, hosts[0].Port)
	assert.Equal(t, OriginMDNS, hosts[0].Origin)
}

func TestNativeBrowser_NothingAnnounced(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	hosts, err := (&NativeBrowser{}).Browse(ctx, "_nobody-here._tcp")
	require.NoError(t, err)
	assert.Empty(t, hosts)
}
