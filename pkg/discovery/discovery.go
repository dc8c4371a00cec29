package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds the mDNS browse step.
const DefaultTimeout = 5 * time.Second

// Session accumulates the records of one discovery run.
type Session struct {
	ID        string
	StartedAt time.Time

	hosts []HostRecord
	seen  map[string]struct{}
}

func newSession() *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		seen:      make(map[string]struct{}),
	}
}

// add appends r unless its address was already recorded in this session.
func (s *Session) add(r HostRecord) {
	if _, dup := s.seen[r.Address]; dup {
		return
	}
	s.seen[r.Address] = struct{}{}
	s.hosts = append(s.hosts, r)
}

// Hosts returns the records gathered so far.
func (s *Session) Hosts() []HostRecord {
	return append([]HostRecord(nil), s.hosts...)
}

// Discoverer finds streaming hosts: mDNS first, a subnet scan when mDNS
// yields nothing.
type Discoverer struct {
	Browser     Browser
	Scanner     *Scanner
	ServiceType string
}

// NewDiscoverer wires a browser and scanner. A nil browser defaults to
// avahi-browse and a nil scanner to NewScanner.
func NewDiscoverer(browser Browser, scanner *Scanner) *Discoverer {
	if browser == nil {
		browser = &AvahiBrowser{}
	}
	if scanner == nil {
		scanner = NewScanner()
	}
	return &Discoverer{
		Browser:     browser,
		Scanner:     scanner,
		ServiceType: DefaultServiceType,
	}
}

// Discover runs discovery on its own goroutine. The returned channel yields
// exactly one Result and is then closed.
func (d *Discoverer) Discover(ctx context.Context, timeout time.Duration) <-chan Result {
	outCh := make(chan Result, 1)
	go func() {
		defer close(outCh)
		outCh <- d.Run(ctx, timeout)
	}()
	return outCh
}

// Run is the blocking form of Discover. It never fails; the worst case is an
// empty host list.
func (d *Discoverer) Run(ctx context.Context, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	session := newSession()

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	records, err := d.Browser.Browse(browseCtx, d.serviceType())
	cancel()
	if err != nil {
		slog.Warn("mDNS browse failed, falling back to subnet scan", "session", session.ID, "error", err)
	}
	for _, r := range records {
		session.add(r)
	}
	if len(session.hosts) > 0 {
		slog.Info("mDNS found hosts", "session", session.ID, "count", len(session.hosts))
		return Result{SessionID: session.ID, Source: OriginMDNS, Hosts: session.Hosts()}
	}

	slog.Info("mDNS found no hosts, starting subnet scan", "session", session.ID)
	for _, r := range d.Scanner.Scan(ctx) {
		session.add(r)
	}
	slog.Info("subnet scan finished", "session", session.ID, "count", len(session.hosts))
	return Result{SessionID: session.ID, Source: OriginManual, Hosts: session.Hosts()}
}

func (d *Discoverer) serviceType() string {
	if d.ServiceType == "" {
		return DefaultServiceType
	}
	return d.ServiceType
}
