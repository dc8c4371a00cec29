package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/remotePlay/internal/app_events"
	"github.com/rescp17/remotePlay/internal/config"
	"github.com/rescp17/remotePlay/pkg/discovery"
	"github.com/rescp17/remotePlay/pkg/guest"
	"github.com/rescp17/remotePlay/pkg/host"
	"github.com/rescp17/remotePlay/pkg/pin"
)

const pollInterval = time.Second

func (c *cli) discoverer() *discovery.Discoverer {
	var browser discovery.Browser
	if c.cfg.Network.Browser == config.BrowserNative {
		browser = &discovery.NativeBrowser{}
	}
	scanner := discovery.NewScanner()
	scanner.Port = c.cfg.Network.ControlPort
	scanner.Workers = c.cfg.Network.ScanWorkers
	scanner.ProbeTimeout = c.cfg.Network.ProbeTimeout
	return discovery.NewDiscoverer(browser, scanner)
}

func (c *cli) resolver() *pin.Resolver {
	r := pin.NewResolver()
	r.Port = c.cfg.Network.PinPort
	return r
}

func (c *cli) hostApp() *host.App {
	return host.NewApp(host.Config{
		Binary:        c.cfg.Host.Binary,
		Dir:           c.cfg.HostDir(c.baseDir),
		StartupWindow: c.cfg.Host.StartupWindow,
		GracePeriod:   c.cfg.Host.GracePeriod,
		PinPort:       c.cfg.Network.PinPort,
		WebPort:       c.cfg.Host.WebPort,
		WebUser:       c.cfg.Host.WebUser,
		WebPassword:   c.cfg.Host.WebPassword,
	})
}

func (c *cli) guestClient() *guest.Client {
	return guest.NewClient(guest.ClientConfig{
		Binaries:    c.cfg.Guest.Binaries,
		Dir:         c.cfg.GuestDir(c.baseDir),
		GracePeriod: c.cfg.Guest.GracePeriod,
	})
}

// guestApp wires the guest flow. The local server's web API answers PINs
// when the guest pairs with a server on this same machine.
func (c *cli) guestApp(opts guest.StreamOptions) *guest.App {
	client := c.guestClient()
	return guest.NewApp(guest.AppConfig{
		Client:           client,
		Discoverer:       c.discoverer(),
		Resolver:         c.resolver(),
		Pairer:           client.PairingController(c.cfg.Guest.PairTimeout, c.hostApp()),
		Options:          opts,
		DiscoveryTimeout: c.cfg.Network.DiscoveryTimeout,
		PinTimeout:       c.cfg.Network.PinTimeout,
		PairTimeout:      c.cfg.Guest.PairTimeout,
	})
}

func formatCommon(msg tea.Msg) string {
	switch m := msg.(type) {
	case appevents.StatusUpdateMsg:
		return m.Message
	case appevents.ErrorMsg:
		return "Error: " + m.Err.Error()
	}
	return ""
}

// waitWhile blocks while alive reports true or until ctx is done.
func waitWhile(ctx context.Context, alive func() bool) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for alive() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
