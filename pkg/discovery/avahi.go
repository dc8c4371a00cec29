package discovery

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// avahi-browse -p field positions.
const (
	fieldMarker = iota
	fieldIface
	fieldFamily
	fieldName
	fieldType
	fieldDomain
	fieldHostname
	fieldAddress
	fieldPort
	minFields
)

const resolvedMarker = "="

// AvahiBrowser browses by running the system's avahi-browse tool.
type AvahiBrowser struct {
	// Command is the browse binary, "avahi-browse" when empty.
	Command string
}

func (b *AvahiBrowser) command() string {
	if b.Command == "" {
		return "avahi-browse"
	}
	return b.Command
}

// Browse runs the tool in terminate-after-dump, resolve and parsable mode.
// The caller bounds it through ctx.
func (b *AvahiBrowser) Browse(ctx context.Context, serviceType string) ([]HostRecord, error) {
	cmd := exec.CommandContext(ctx, b.command(), "-t", "-r", "-p", serviceType)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, b.command(), err)
	}
	return ParseAvahiOutput(string(out)), nil
}

// ParseAvahiOutput extracts resolved records from avahi-browse parsable
// output. Unresolved lines and malformed lines are skipped; duplicates of an
// address already seen are dropped.
func ParseAvahiOutput(output string) []HostRecord {
	var hosts []HostRecord
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		parts := strings.Split(strings.TrimRight(sc.Text(), "\r"), ";")
		if len(parts) < minFields || parts[fieldMarker] != resolvedMarker {
			continue
		}
		raw := parts[fieldAddress]
		if raw == "" {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}

		port, err := strconv.Atoi(parts[fieldPort])
		if err != nil || port <= 0 {
			port = ControlPort
		}
		name := parts[fieldName]
		if name == "" {
			name = parts[fieldHostname]
		}
		hosts = append(hosts, HostRecord{
			Name:    unescapeAvahi(name),
			Address: FormatAddress(raw, parts[fieldIface]),
			Port:    port,
			Origin:  OriginMDNS,
		})
	}
	return hosts
}

// unescapeAvahi decodes the \DDD escapes avahi-browse uses in service names.
func unescapeAvahi(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if n, err := strconv.Atoi(s[i+1 : i+4]); err == nil && n < 256 {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
