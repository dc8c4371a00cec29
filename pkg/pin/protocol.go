// Package pin implements PIN broadcast matchmaking: a guest broadcasts a
// six-digit code over UDP and the host holding that code answers with a
// unicast reply, revealing its address.
package pin

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// DefaultPort is the UDP port dedicated to PIN matchmaking.
	DefaultPort = 48011
	// CodeLength is the number of ASCII digits in a PIN.
	CodeLength = 6

	requestPrefix = "WHO_HAS_PIN"
	replyPrefix   = "I_HAVE_PIN"
	maxDatagram   = 1024
)

// ErrInvalidCode is returned for codes that are not exactly six ASCII digits.
var ErrInvalidCode = errors.New("pin must be exactly 6 digits")

// ValidCode reports whether code is exactly CodeLength ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Request is the broadcast payload asking who holds code.
func Request(code string) string {
	return requestPrefix + " " + code
}

// Reply is the unicast payload announcing hostLabel as the holder.
func Reply(hostLabel string) string {
	return replyPrefix + " " + hostLabel
}

// ParseReply extracts the host label from a reply payload.
func ParseReply(payload []byte) (string, bool) {
	msg := strings.TrimSpace(string(payload))
	if msg == replyPrefix {
		return "", true
	}
	label, ok := strings.CutPrefix(msg, replyPrefix+" ")
	if !ok {
		return "", false
	}
	return label, true
}

// Generate returns a random six-digit code.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
