package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PIDFile is the sidecar file recording a supervised PID. Its content is a
// hint only and is always checked against the process table before use.
type PIDFile struct {
	Path string
}

// Write records pid, creating parent directories as needed.
func (f PIDFile) Write(pid int) error {
	if f.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("create pid file directory: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Read returns the recorded PID. A missing file yields os.ErrNotExist.
func (f PIDFile) Read() (int, error) {
	if f.Path == "" {
		return 0, os.ErrNotExist
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %s: %q", f.Path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Remove deletes the file; a missing file is not an error.
func (f PIDFile) Remove() error {
	if f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}
