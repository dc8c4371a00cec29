package discovery

import (
	"context"
	"errors"
	"strings"
)

const (
	// DefaultServiceType is the service the streaming server announces over mDNS.
	DefaultServiceType = "_nvstream._tcp"
	DefaultDomain      = "local"

	// ControlPort is the streaming server's control-protocol TCP port.
	ControlPort = 47989
)

// ErrToolUnavailable is returned when the mDNS browse step cannot produce
// results. It never reaches callers of Discover.
var ErrToolUnavailable = errors.New("mDNS browse unavailable")

// Origin records how a host was found.
type Origin string

const (
	OriginMDNS   Origin = "mdns"
	OriginManual Origin = "manual"
	OriginPIN    Origin = "pin"
)

// HostRecord describes a streaming host reachable on the local network.
// Address is a literal IPv4 address or a bracketed IPv6 address, optionally
// with a %zone suffix inside the brackets.
type HostRecord struct {
	Name    string
	Address string
	Port    int
	Origin  Origin
}

// Host returns the address without IPv6 brackets, suitable for net.JoinHostPort.
func (h HostRecord) Host() string {
	return strings.TrimSuffix(strings.TrimPrefix(h.Address, "["), "]")
}

// Browser runs a single mDNS browse for serviceType and returns the resolved
// records in the order they were reported.
type Browser interface {
	Browse(ctx context.Context, serviceType string) ([]HostRecord, error)
}

// Result is delivered exactly once per Discover call.
type Result struct {
	SessionID string
	Source    Origin
	Hosts     []HostRecord
}

// FormatAddress renders ip the way HostRecord.Address expects it. IPv6
// literals are bracketed and link-local ones get iface as their zone when
// they do not carry one already.
func FormatAddress(ip, iface string) string {
	addr := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(ip), "["), "]")
	if !strings.Contains(addr, ":") {
		return addr
	}
	if strings.HasPrefix(strings.ToLower(addr), "fe80:") && !strings.Contains(addr, "%") && iface != "" {
		addr += "%" + iface
	}
	return "[" + addr + "]"
}

// BrowserFunc adapts a plain function to the Browser interface.
type BrowserFunc func(ctx context.Context, serviceType string) ([]HostRecord, error)

// Browse calls f.
func (f BrowserFunc) Browse(ctx context.Context, serviceType string) ([]HostRecord, error) {
	return f(ctx, serviceType)
}
