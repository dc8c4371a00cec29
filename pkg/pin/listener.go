package pin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultPollInterval bounds how long Stop waits for the receive loop.
const DefaultPollInterval = 250 * time.Millisecond

// ListenerConfig tunes a Listener. Zero values select the defaults.
type ListenerConfig struct {
	Port         int
	PollInterval time.Duration
}

// Listener is the host side of PIN matchmaking. It owns its socket and
// answers requests for exactly one PIN until stopped.
type Listener struct {
	conn    *net.UDPConn
	request string
	reply   []byte
	poll    time.Duration

	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// Listen binds the wildcard address and starts answering requests for pin
// with hostLabel on a background goroutine.
func Listen(cfg ListenerConfig, pin, hostLabel string) (*Listener, error) {
	if !ValidCode(pin) {
		return nil, ErrInvalidCode
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	return listen(port, cfg.PollInterval, pin, hostLabel)
}

// ListenEphemeral is Listen on a kernel-chosen port.
func ListenEphemeral(pin, hostLabel string) (*Listener, error) {
	if !ValidCode(pin) {
		return nil, ErrInvalidCode
	}
	return listen(0, 0, pin, hostLabel)
}

func listen(port int, poll time.Duration, pin, hostLabel string) (*Listener, error) {
	conn, err := listenUDP(context.Background(), ":"+strconv.Itoa(port), unix.SO_REUSEADDR)
	if err != nil {
		return nil, fmt.Errorf("bind pin listener: %w", err)
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	l := &Listener{
		conn:    conn,
		request: Request(pin),
		reply:   []byte(Reply(hostLabel)),
		poll:    poll,
		done:    make(chan struct{}),
	}
	go l.serve()
	slog.Info("pin listener started", "addr", conn.LocalAddr().String(), "label", hostLabel)
	return l, nil
}

// StartPinListener listens on the well-known port and returns the function
// that stops it. The returned function is never nil.
func StartPinListener(pin, hostLabel string) (func(), error) {
	l, err := Listen(ListenerConfig{}, pin, hostLabel)
	if err != nil {
		return func() {}, err
	}
	return l.Stop, nil
}

// Addr is the bound socket address.
func (l *Listener) Addr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Stop flips the stop flag, closes the socket and waits for the receive loop
// to exit. Calling it more than once is harmless.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		if err := l.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("closing pin listener", "error", err)
		}
		<-l.done
		slog.Info("pin listener stopped")
	})
}

func (l *Listener) serve() {
	defer close(l.done)
	buf := make([]byte, maxDatagram)
	for !l.stopped.Load() {
		l.conn.SetReadDeadline(time.Now().Add(l.poll))
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if l.stopped.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("pin listener read failed", "error", err)
			continue
		}
		if strings.TrimSpace(string(buf[:n])) != l.request {
			continue
		}
		if _, err := l.conn.WriteToUDP(l.reply, src); err != nil {
			slog.Warn("pin reply failed", "to", src.String(), "error", err)
		}
	}
}
