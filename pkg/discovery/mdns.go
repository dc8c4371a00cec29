package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/brutella/dnssd"
	dnssdlog "github.com/brutella/dnssd/log"
)

func init() {
	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)
}

// NativeBrowser browses in-process with multicast DNS instead of shelling out
// to avahi-browse. It collects entries until ctx is done.
type NativeBrowser struct {
	Domain string
}

func (m *NativeBrowser) domain() string {
	if m.Domain == "" {
		return DefaultDomain
	}
	return m.Domain
}

// Browse returns every address announced for serviceType before ctx expires.
func (m *NativeBrowser) Browse(ctx context.Context, serviceType string) ([]HostRecord, error) {
	var (
		mu    sync.Mutex
		hosts []HostRecord
		seen  = make(map[string]struct{})
	)

	addFn := func(e dnssd.BrowseEntry) {
		mu.Lock()
		defer mu.Unlock()
		for _, ip := range e.IPs {
			raw := ip.String()
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			hosts = append(hosts, HostRecord{
				Name:    e.Name,
				Address: FormatAddress(raw, e.IfaceName),
				Port:    e.Port,
				Origin:  OriginMDNS,
			})
		}
	}
	rmvFn := func(dnssd.BrowseEntry) {}

	service := fmt.Sprintf("%s.%s.", serviceType, m.domain())
	err := dnssd.LookupType(ctx, service, addFn, rmvFn)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: mDNS lookup failed: %v", ErrToolUnavailable, err)
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]HostRecord(nil), hosts...), nil
}
