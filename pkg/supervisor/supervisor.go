// Package supervisor spawns, tracks and terminates the long-running native
// processes of a streaming session (the host's server and the guest's client).
//
// A Supervisor is not safe for concurrent Start/Stop calls; callers serialize
// them, typically through one controller per process role.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"
)

const (
	DefaultStartupWindow = time.Second
	DefaultGracePeriod   = 5 * time.Second

	killWait     = 2 * time.Second
	pollInterval = 50 * time.Millisecond
)

var (
	ErrAlreadyRunning = errors.New("process already running")
	ErrLaunchFailed   = errors.New("process exited during startup")
)

// Config describes one supervised process role.
type Config struct {
	// Name is used in log lines, e.g. "sunshine".
	Name string
	// BinaryName is the exact process name swept on Stop and matched during
	// Reconcile. Empty disables both.
	BinaryName string
	// PIDFile is the sidecar file path. Empty disables it.
	PIDFile string
	// Dir is the child's working directory.
	Dir string

	StartupWindow time.Duration
	GracePeriod   time.Duration

	// Output additionally receives the child's merged stdout and stderr.
	Output io.Writer
	// Table defaults to PgrepTable.
	Table ProcessTable
}

// Status is a point-in-time summary for process-control surfaces.
type Status struct {
	Name    string
	Running bool
	PID     int
	State   State
	PIDFile string
}

type child struct {
	cmd    *exec.Cmd
	output *tailBuffer
	done   chan struct{}

	mu     sync.Mutex
	handle Handle
}

func (c *child) snapshot() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.handle
	h.Argv = append([]string(nil), c.handle.Argv...)
	return h
}

func (c *child) setState(next State) {
	c.mu.Lock()
	c.handle.State = c.handle.State.advance(next)
	c.mu.Unlock()
}

func (c *child) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Supervisor manages one process role.
type Supervisor struct {
	cfg     Config
	table   ProcessTable
	pidFile PIDFile

	mu      sync.Mutex
	current *child
	adopted int
}

// New builds a supervisor and reconciles it against the sidecar PID file and
// the process table, so a process started by an earlier instance is found.
func New(cfg Config) *Supervisor {
	if cfg.StartupWindow <= 0 {
		cfg.StartupWindow = DefaultStartupWindow
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.Name == "" {
		cfg.Name = cfg.BinaryName
	}
	table := cfg.Table
	if table == nil {
		table = PgrepTable{}
	}
	s := &Supervisor{
		cfg:     cfg,
		table:   table,
		pidFile: PIDFile{Path: cfg.PIDFile},
	}
	s.Reconcile()
	return s
}

// Start spawns argv with envOverrides merged over the current environment.
// The child runs in its own session. If it exits within the startup window
// Start reports false with the captured output; otherwise the handle is
// recorded and its PID persisted to the sidecar file.
func (s *Supervisor) Start(argv []string, envOverrides map[string]string) (bool, string) {
	if len(argv) == 0 {
		return false, "empty command"
	}
	if s.IsRunning() {
		slog.Warn("start refused", "process", s.cfg.Name, "error", ErrAlreadyRunning)
		return false, ErrAlreadyRunning.Error()
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		slog.Error("binary not found", "process", s.cfg.Name, "binary", argv[0], "error", err)
		return false, fmt.Sprintf("%s not found: %v", argv[0], err)
	}

	out := newTailBuffer(maxCapturedOutput)
	var w io.Writer = out
	if s.cfg.Output != nil {
		w = io.MultiWriter(out, s.cfg.Output)
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = mergeEnv(os.Environ(), envOverrides)
	cmd.Dir = s.cfg.Dir
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = detachedAttr()
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		slog.Error("failed to start process", "process", s.cfg.Name, "error", err)
		return false, fmt.Sprintf("start %s: %v", path, err)
	}

	pid := cmd.Process.Pid
	c := &child{
		cmd:    cmd,
		output: out,
		done:   make(chan struct{}),
		handle: Handle{
			PID:       pid,
			Argv:      append([]string(nil), argv...),
			StartedAt: time.Now(),
			State:     State{Kind: Starting},
		},
	}
	go func() {
		_ = cmd.Wait()
		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		c.setState(State{Kind: Exited, ExitCode: code})
		close(c.done)
		slog.Info("process exited", "process", s.cfg.Name, "pid", pid, "code", code)
	}()

	select {
	case <-c.done:
		h := c.snapshot()
		diag := launchDiagnostic(path, h.State.ExitCode, out.String())
		slog.Error("process failed to launch", "process", s.cfg.Name, "error", ErrLaunchFailed, "code", h.State.ExitCode)
		s.mu.Lock()
		s.current = c
		s.mu.Unlock()
		return false, diag
	case <-time.After(s.cfg.StartupWindow):
	}

	c.setState(State{Kind: Running})
	s.mu.Lock()
	s.current = c
	s.adopted = 0
	s.mu.Unlock()

	if err := s.pidFile.Write(pid); err != nil {
		slog.Warn("could not persist pid", "process", s.cfg.Name, "error", err)
	}
	slog.Info("process started", "process", s.cfg.Name, "pid", pid)
	return true, out.String()
}

// IsRunning reports whether the in-memory handle, or a process adopted by
// Reconcile, is alive.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.snapshot().State.Alive() {
		return true
	}
	if s.adopted > 0 {
		if pidAlive(s.adopted) {
			return true
		}
		s.adopted = 0
	}
	return false
}

// Reconcile recovers liveness after the in-memory handle was lost. In order of
// cost it checks the handle, the sidecar PID and a process-table lookup by
// exact binary name. A stale sidecar file is removed.
func (s *Supervisor) Reconcile() bool {
	if s.IsRunning() {
		return true
	}

	pid, err := s.pidFile.Read()
	switch {
	case err == nil && s.owns(pid):
		s.adopt(pid, "pid file")
		return true
	case err == nil:
		slog.Info("removing stale pid file", "process", s.cfg.Name, "pid", pid)
		s.removePIDFile()
	case !errors.Is(err, os.ErrNotExist):
		slog.Warn("ignoring unreadable pid file", "process", s.cfg.Name, "error", err)
		s.removePIDFile()
	}

	if s.cfg.BinaryName == "" {
		return false
	}
	pids, err := s.table.FindByName(s.cfg.BinaryName)
	if err != nil {
		slog.Warn("process table lookup failed", "process", s.cfg.Name, "error", err)
		return false
	}
	for _, pid := range pids {
		if pidAlive(pid) {
			s.adopt(pid, "process table")
			return true
		}
	}
	return false
}

// owns reports whether pid is alive and runs the supervised binary. A PID
// file is never trusted alone: the PID may have been recycled. Without a
// binary name there is nothing to check against.
func (s *Supervisor) owns(pid int) bool {
	if !pidAlive(pid) {
		return false
	}
	if s.cfg.BinaryName == "" {
		return true
	}
	if processName(pid) == commName(s.cfg.BinaryName) {
		return true
	}
	pids, err := s.table.FindByName(s.cfg.BinaryName)
	if err != nil {
		slog.Warn("process table lookup failed", "process", s.cfg.Name, "error", err)
		return false
	}
	for _, p := range pids {
		if p == pid {
			return true
		}
	}
	slog.Warn("pid does not belong to the supervised binary", "process", s.cfg.Name, "pid", pid, "name", processName(pid))
	return false
}

func (s *Supervisor) adopt(pid int, source string) {
	s.mu.Lock()
	s.adopted = pid
	s.mu.Unlock()
	slog.Info("adopted running process", "process", s.cfg.Name, "pid", pid, "source", source)
}

// Stop terminates the process. A live handle gets SIGTERM on its whole
// process group, then SIGKILL after the grace period. Without a handle the
// sidecar (or adopted) PID is signalled directly. Every path ends with a
// sweep by exact binary name and removal of the sidecar file. Stop reports
// whether the tracked process is gone.
func (s *Supervisor) Stop() bool {
	s.mu.Lock()
	c := s.current
	adopted := s.adopted
	s.mu.Unlock()

	ok := true
	switch {
	case c != nil && !c.exited():
		ok = s.terminateGroup(c)
	default:
		pid := adopted
		if pid == 0 {
			if filePID, err := s.pidFile.Read(); err == nil {
				pid = filePID
			}
		}
		if pid > 0 && (pid == adopted || s.owns(pid)) && pidAlive(pid) {
			ok = s.terminatePID(pid)
		}
	}

	if s.cfg.BinaryName != "" {
		if err := s.table.KillByName(s.cfg.BinaryName, syscall.SIGTERM); err != nil {
			slog.Warn("name sweep failed", "process", s.cfg.Name, "error", err)
		}
	}
	s.removePIDFile()

	s.mu.Lock()
	s.adopted = 0
	s.mu.Unlock()

	if !ok {
		slog.Error("process survived termination", "process", s.cfg.Name)
	} else {
		slog.Info("process stopped", "process", s.cfg.Name)
	}
	return ok
}

// Restart stops any running instance and starts argv.
func (s *Supervisor) Restart(argv []string, envOverrides map[string]string) (bool, string) {
	s.Stop()
	return s.Start(argv, envOverrides)
}

func (s *Supervisor) terminateGroup(c *child) bool {
	pgid := c.snapshot().PID
	slog.Info("stopping process group", "process", s.cfg.Name, "pgid", pgid)
	if err := signalGroup(pgid, syscall.SIGTERM); err != nil {
		slog.Warn("graceful signal failed", "process", s.cfg.Name, "error", err)
	}
	select {
	case <-c.done:
		return true
	case <-time.After(s.cfg.GracePeriod):
	}

	slog.Warn("grace period expired, killing process group", "process", s.cfg.Name, "pgid", pgid)
	if err := signalGroup(pgid, syscall.SIGKILL); err != nil {
		slog.Warn("kill signal failed", "process", s.cfg.Name, "error", err)
	}
	select {
	case <-c.done:
		return true
	case <-time.After(killWait):
		return false
	}
}

func (s *Supervisor) terminatePID(pid int) bool {
	slog.Info("stopping process from pid", "process", s.cfg.Name, "pid", pid)
	if err := signalPID(pid, syscall.SIGTERM); err != nil {
		slog.Warn("graceful signal failed", "process", s.cfg.Name, "error", err)
	}
	if waitGone(pid, s.cfg.GracePeriod) {
		return true
	}
	if err := signalPID(pid, syscall.SIGKILL); err != nil {
		slog.Warn("kill signal failed", "process", s.cfg.Name, "error", err)
	}
	return waitGone(pid, killWait)
}

func (s *Supervisor) removePIDFile() {
	if err := s.pidFile.Remove(); err != nil {
		slog.Warn("could not remove pid file", "process", s.cfg.Name, "error", err)
	}
}

// Handle returns the most recent in-memory handle, if any.
func (s *Supervisor) Handle() (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Handle{}, false
	}
	return s.current.snapshot(), true
}

// Output returns the captured tail of the current child's output.
func (s *Supervisor) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.output.String()
}

// Status summarizes the supervisor for a CLI or API surface.
func (s *Supervisor) Status() Status {
	st := Status{Name: s.cfg.Name, PIDFile: s.cfg.PIDFile, Running: s.IsRunning()}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.current != nil && s.current.snapshot().State.Alive():
		h := s.current.snapshot()
		st.PID, st.State = h.PID, h.State
	case s.adopted > 0:
		st.PID, st.State = s.adopted, State{Kind: Unknown}
	case s.current != nil:
		st.PID, st.State = s.current.snapshot().PID, s.current.snapshot().State
	default:
		st.State = State{Kind: NotStarted}
	}
	return st
}

func waitGone(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !pidAlive(pid) {
			return true
		}
		time.Sleep(pollInterval)
	}
	return !pidAlive(pid)
}

// mergeEnv overlays overrides on base, keeping base order and appending new
// keys sorted.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	applied := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key := kv
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key = kv[:i]
				break
			}
		}
		if v, ok := overrides[key]; ok {
			if !applied[key] {
				out = append(out, key+"="+v)
				applied[key] = true
			}
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !applied[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
