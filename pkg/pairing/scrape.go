package pairing

import (
	"strings"
	"unicode"
)

const (
	pinToken = "PIN"
	// TargetMarker identifies the line in which the client addresses the
	// host machine, e.g. "Please enter the following PIN on the target PC: 1234".
	TargetMarker = "target PC"
	// SuccessPhrase is matched case-insensitively.
	SuccessPhrase = "successfully paired"
)

// extractPIN returns the digits of the last whitespace-delimited token of a
// line announcing the PIN, or "" when the line is not such an announcement.
func extractPIN(line string) string {
	if !strings.Contains(line, pinToken) || !strings.Contains(line, TargetMarker) {
		return ""
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, fields[len(fields)-1])
}

func isSuccessLine(line string) bool {
	return strings.Contains(strings.ToLower(line), SuccessPhrase)
}

// isLoopback reports whether target names this machine.
func isLoopback(target string) bool {
	host := strings.Trim(target, "[]")
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	switch host {
	case "localhost", "::1":
		return true
	}
	return strings.HasPrefix(host, "127.") && strings.IndexFunc(host, func(r rune) bool {
		return r != '.' && !unicode.IsDigit(r)
	}) < 0
}
