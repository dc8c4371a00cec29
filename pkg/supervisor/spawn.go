package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Child is a short-lived attached subprocess whose stdout and stderr are
// merged into a single stream. It lives in its own process group so it can
// be terminated together with anything it spawned.
type Child struct {
	cmd  *exec.Cmd
	out  *os.File
	done chan struct{}
	code int
}

// Spawn starts argv with envOverrides. The caller must drain Output until EOF
// and then call Wait.
func Spawn(argv []string, envOverrides map[string]string) (*Child, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("spawn: empty command")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}
	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = mergeEnv(os.Environ(), envOverrides)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = attachedAttr()

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("spawn %s: %w", argv[0], err)
	}
	// The child holds its own copy of the write end.
	w.Close()

	c := &Child{cmd: cmd, out: r, done: make(chan struct{}), code: -1}
	go func() {
		_ = cmd.Wait()
		if cmd.ProcessState != nil {
			c.code = cmd.ProcessState.ExitCode()
		}
		close(c.done)
	}()
	return c, nil
}

// PID is the child's process ID, which is also its process group ID.
func (c *Child) PID() int {
	return c.cmd.Process.Pid
}

// Output is the merged stdout/stderr stream.
func (c *Child) Output() io.ReadCloser {
	return c.out
}

// Wait blocks until the child exits and returns its exit status; -1 means it
// was killed by a signal.
func (c *Child) Wait() int {
	<-c.done
	c.out.Close()
	return c.code
}

// Done is closed when the child has exited.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Terminate sends SIGTERM to the child's group and escalates to SIGKILL
// after grace. It returns once the child has exited or the kill wait elapsed.
func (c *Child) Terminate(grace time.Duration) {
	pgid := c.PID()
	_ = signalGroup(pgid, syscall.SIGTERM)
	select {
	case <-c.done:
		return
	case <-time.After(grace):
	}
	_ = signalGroup(pgid, syscall.SIGKILL)
	select {
	case <-c.done:
	case <-time.After(killWait):
	}
}
