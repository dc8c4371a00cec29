package guest

import (
	"errors"
	"net"
	"strings"

	"github.com/rescp17/remotePlay/pkg/discovery"
)

var ErrEmptyAddress = errors.New("empty host address")

// ManualHost turns a user-typed address into a host record. IPv6 literals
// are bracketed, with or without brackets and zone on input. A port suffix is
// not accepted; hosts always listen on the control port.
func ManualHost(input string) (discovery.HostRecord, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return discovery.HostRecord{}, ErrEmptyAddress
	}
	bare := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	ipPart, zone, _ := strings.Cut(bare, "%")

	address := raw
	if ip := net.ParseIP(ipPart); ip != nil {
		literal := ip.String()
		if zone != "" && ip.To4() == nil {
			literal += "%" + zone
		}
		address = discovery.FormatAddress(literal, "")
	}
	return discovery.HostRecord{
		Name:    bare,
		Address: address,
		Port:    discovery.ControlPort,
		Origin:  discovery.OriginManual,
	}, nil
}
