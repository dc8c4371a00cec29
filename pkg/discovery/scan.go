package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultScanWorkers  = 50
	DefaultProbeTimeout = 500 * time.Millisecond
)

// Scanner probes every address of the local /24 for an open control port.
type Scanner struct {
	Port         int
	Workers      int
	ProbeTimeout time.Duration

	// LocalIP reports the address whose /24 is scanned. Defaults to LocalIPv4.
	LocalIP func() (net.IP, error)
	// LookupAddr supplies display names. Defaults to net.DefaultResolver.
	LookupAddr func(ctx context.Context, addr string) ([]string, error)
}

// NewScanner returns a scanner with the default port, pool size and probe timeout.
func NewScanner() *Scanner {
	return &Scanner{
		Port:         ControlPort,
		Workers:      DefaultScanWorkers,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// Targets lists loopback followed by .1 through .254 of the local /24.
// Only loopback is returned when no local IPv4 address is known.
func (s *Scanner) Targets() []string {
	targets := []string{"127.0.0.1"}
	localIP := s.LocalIP
	if localIP == nil {
		localIP = LocalIPv4
	}
	ip, err := localIP()
	if err != nil || ip.To4() == nil {
		return targets
	}
	ip4 := ip.To4()
	for i := 1; i <= 254; i++ {
		candidate := net.IPv4(ip4[0], ip4[1], ip4[2], byte(i)).String()
		if candidate == targets[0] {
			continue
		}
		targets = append(targets, candidate)
	}
	return targets
}

// Scan probes all targets with at most Workers probes in flight. Hosts are
// returned in completion order; unreachable hosts are simply absent.
func (s *Scanner) Scan(ctx context.Context) []HostRecord {
	var (
		mu    sync.Mutex
		hosts []HostRecord
	)

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultScanWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, target := range s.Targets() {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !s.probe(gctx, target) {
				return nil
			}
			rec := HostRecord{
				Name:    s.displayName(gctx, target),
				Address: target,
				Port:    s.port(),
				Origin:  OriginManual,
			}
			mu.Lock()
			hosts = append(hosts, rec)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return hosts
}

func (s *Scanner) port() int {
	if s.Port <= 0 {
		return ControlPort
	}
	return s.Port
}

func (s *Scanner) probe(ctx context.Context, ip string) bool {
	timeout := s.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(s.port())))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (s *Scanner) displayName(ctx context.Context, ip string) string {
	lookup := s.LookupAddr
	if lookup == nil {
		lookup = net.DefaultResolver.LookupAddr
	}
	lctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	names, err := lookup(lctx, ip)
	if err != nil || len(names) == 0 {
		return ip
	}
	if name := strings.TrimSuffix(names[0], "."); name != "" {
		return name
	}
	return ip
}

// LocalIPv4 returns the IPv4 address of the interface that routes outward.
// No packet is sent; a UDP "connection" only selects a source address.
func LocalIPv4() (net.IP, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP.To4() != nil {
			return addr.IP.To4(), nil
		}
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				if ip4 := ipnet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
					return ip4, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("no local IPv4 address found")
}
