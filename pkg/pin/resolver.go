package pin

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultResolveTimeout is how long a guest waits for a reply.
const DefaultResolveTimeout = 3 * time.Second

// Resolver is the guest side of PIN matchmaking.
type Resolver struct {
	// Port defaults to DefaultPort.
	Port int
	// BroadcastAddr defaults to the limited broadcast address 255.255.255.255.
	BroadcastAddr string
}

// NewResolver returns a resolver using the well-known port and limited broadcast.
func NewResolver() *Resolver {
	return &Resolver{Port: DefaultPort, BroadcastAddr: net.IPv4bcast.String()}
}

// ResolvePin broadcasts one request for code and returns the source address of
// the first valid reply. A malformed code returns "" without touching the
// network; a timeout or socket error also returns "".
func (r *Resolver) ResolvePin(ctx context.Context, code string, timeout time.Duration) string {
	if !ValidCode(code) {
		return ""
	}
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr, err := r.resolve(ctx, code)
	if err != nil {
		slog.Debug("pin not resolved", "error", err)
		return ""
	}
	return addr
}

func (r *Resolver) resolve(ctx context.Context, code string) (string, error) {
	conn, err := listenUDP(ctx, ":0", unix.SO_BROADCAST)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(r.broadcastAddr(), strconv.Itoa(r.port())))
	if err != nil {
		return "", err
	}
	if _, err := conn.WriteToUDP([]byte(Request(code)), dst); err != nil {
		return "", err
	}

	buf := make([]byte, maxDatagram)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		if _, ok := ParseReply(buf[:n]); ok {
			return src.IP.String(), nil
		}
		// Anything else on the socket is not an answer to us.
	}
}

func (r *Resolver) port() int {
	if r.Port <= 0 {
		return DefaultPort
	}
	return r.Port
}

func (r *Resolver) broadcastAddr() string {
	if r.BroadcastAddr == "" {
		return net.IPv4bcast.String()
	}
	return r.BroadcastAddr
}

// ResolvePin resolves code with the default resolver.
func ResolvePin(ctx context.Context, code string, timeout time.Duration) string {
	return NewResolver().ResolvePin(ctx, code, timeout)
}
