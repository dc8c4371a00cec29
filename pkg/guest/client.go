// Package guest controls the streaming client on the machine that connects
// to a host: finding hosts, pairing with them and running the stream.
package guest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rescp17/remotePlay/pkg/discovery"
	"github.com/rescp17/remotePlay/pkg/pairing"
	"github.com/rescp17/remotePlay/pkg/supervisor"
)

const (
	PIDFileName        = "moonlight.pid"
	DefaultListTimeout = 5 * time.Second
)

var (
	ErrClientNotInstalled = errors.New("streaming client not installed")
	ErrAlreadyConnected   = errors.New("already connected to a host")
)

// DefaultBinaries are the client executables tried in order.
var DefaultBinaries = []string{"moonlight-qt", "moonlight"}

// DetectBinary returns the first candidate found on PATH.
func DetectBinary(candidates []string) (string, error) {
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrClientNotInstalled, strings.Join(candidates, ", "))
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Binaries []string
	// Dir holds the client's PID file.
	Dir           string
	StartupWindow time.Duration
	GracePeriod   time.Duration
	ListTimeout   time.Duration
	Output        io.Writer
	Table         supervisor.ProcessTable
}

// ClientStatus summarizes the client for a CLI or UI.
type ClientStatus struct {
	supervisor.Status
	Binary string
	Host   string
}

// Client wraps the streaming client executable.
type Client struct {
	cfg    ClientConfig
	binary string
	stream *supervisor.Supervisor

	mu   sync.Mutex
	host discovery.HostRecord
}

// NewClient detects the client binary. A missing binary is logged; every
// operation then fails with ErrClientNotInstalled.
func NewClient(cfg ClientConfig) *Client {
	if len(cfg.Binaries) == 0 {
		cfg.Binaries = DefaultBinaries
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = DefaultListTimeout
	}
	binary, err := DetectBinary(cfg.Binaries)
	if err != nil {
		slog.Warn("streaming client not found", "error", err)
	}
	var name string
	if binary != "" {
		name = filepath.Base(binary)
	}
	return &Client{
		cfg:    cfg,
		binary: binary,
		stream: supervisor.New(supervisor.Config{
			Name:          "moonlight",
			BinaryName:    name,
			PIDFile:       filepath.Join(cfg.Dir, PIDFileName),
			StartupWindow: cfg.StartupWindow,
			GracePeriod:   cfg.GracePeriod,
			Output:        cfg.Output,
			Table:         cfg.Table,
		}),
	}
}

// Binary returns the detected client path, or "".
func (c *Client) Binary() string {
	return c.binary
}

// ListApps returns the applications host offers this client. Only a paired
// client gets a list, so an empty result doubles as "not paired".
func (c *Client) ListApps(ctx context.Context, host string) ([]string, error) {
	if c.binary == "" {
		return nil, ErrClientNotInstalled
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ListTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, "list", host)
	cmd.WaitDelay = time.Second
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list apps on %s: %w", host, err)
	}
	var apps []string
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			apps = append(apps, line)
		}
	}
	return apps, nil
}

// Connect starts streaming from host. It reports false with the client's
// output when the client does not come up.
func (c *Client) Connect(host discovery.HostRecord, opts StreamOptions) (bool, string) {
	if c.binary == "" {
		return false, ErrClientNotInstalled.Error()
	}
	if err := opts.Validate(); err != nil {
		return false, err.Error()
	}
	if c.stream.IsRunning() {
		return false, ErrAlreadyConnected.Error()
	}
	argv := append([]string{c.binary}, opts.Args(host.Address)...)
	ok, diag := c.stream.Start(argv, nil)
	if ok {
		c.mu.Lock()
		c.host = host
		c.mu.Unlock()
		slog.Info("stream started", "host", host.Address, "name", host.Name)
	}
	return ok, diag
}

// Disconnect stops the stream. It reports whether the client is gone.
func (c *Client) Disconnect() bool {
	ok := c.stream.Stop()
	c.mu.Lock()
	c.host = discovery.HostRecord{}
	c.mu.Unlock()
	return ok
}

func (c *Client) IsConnected() bool {
	return c.stream.IsRunning()
}

func (c *Client) Status() ClientStatus {
	c.mu.Lock()
	host := c.host.Address
	c.mu.Unlock()
	return ClientStatus{Status: c.stream.Status(), Binary: c.binary, Host: host}
}

// PairingController returns a controller that pairs this client, using
// ListApps to double-check failures. responder may be nil.
func (c *Client) PairingController(timeout time.Duration, responder pairing.AutoResponder) *pairing.Controller {
	var command []string
	if c.binary != "" {
		command = []string{c.binary}
	}
	return pairing.NewController(pairing.Config{
		Command:       command,
		Lister:        c,
		AutoResponder: responder,
		Timeout:       timeout,
	})
}
