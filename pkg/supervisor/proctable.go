package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ProcessTable looks up and signals processes by exact binary name.
type ProcessTable interface {
	FindByName(name string) ([]int, error)
	KillByName(name string, sig syscall.Signal) error
}

// PgrepTable implements ProcessTable with the procps pgrep and pkill tools.
type PgrepTable struct{}

// FindByName returns the PIDs whose process name is exactly name.
func (PgrepTable) FindByName(name string) ([]int, error) {
	out, err := exec.Command("pgrep", "-x", name).Output()
	if err != nil {
		if noMatch(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep %s: %w", name, err)
	}
	var pids []int
	for _, field := range strings.Fields(string(out)) {
		if pid, err := strconv.Atoi(field); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// KillByName sends sig to every process named exactly name. No match is not
// an error.
func (PgrepTable) KillByName(name string, sig syscall.Signal) error {
	err := exec.Command("pkill", "-"+strconv.Itoa(int(sig)), "-x", name).Run()
	if err != nil && !noMatch(err) {
		return fmt.Errorf("pkill %s: %w", name, err)
	}
	return nil
}

// noMatch reports pgrep/pkill's "no processes matched" exit status.
func noMatch(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 1
}

// pidAlive reports whether pid is present in the process table.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// commLen is the kernel's limit on a process name, including the NUL.
const commLen = 16

// processName returns the kernel's name for pid, or "" where /proc is not
// available.
func processName(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// commName truncates name the way the kernel does for /proc/<pid>/comm.
func commName(name string) string {
	if len(name) >= commLen {
		return name[:commLen-1]
	}
	return name
}

// signalPID signals one process. A process that is already gone is not an error.
func signalPID(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %d to pid %d: %w", sig, pid, err)
	}
	return nil
}

// signalGroup signals every member of the process group led by pgid.
func signalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 0 {
		return nil
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %d to group %d: %w", sig, pgid, err)
	}
	return nil
}
