package supervisor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

const maxCapturedOutput = 64 * 1024

// tailBuffer keeps the last max bytes written to it. It is safe for one
// writer and concurrent readers.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// launchDiagnostic explains why a child died inside the startup window.
func launchDiagnostic(path string, exitCode int, output string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s exited with code %d during startup", path, exitCode)
	if mtype, err := mimetype.DetectFile(path); err == nil {
		fmt.Fprintf(&sb, " (binary type %s)", mtype.String())
	}
	if out := strings.TrimSpace(output); out != "" {
		sb.WriteString("\n")
		sb.WriteString(out)
	}
	return sb.String()
}
