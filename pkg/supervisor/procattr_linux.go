package supervisor

import "syscall"

// detachedAttr puts the child in a new session and process group so the whole
// group can be signalled and it survives the supervisor.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// attachedAttr puts the child in its own process group. Pdeathsig is a
// Linux-only safety net: the kernel sends SIGTERM to the direct child when the
// OS thread that forked it exits. The Go runtime only retires a thread when a
// goroutine exits while locked to it, and Spawn never locks, so in practice
// the signal arrives when this process dies.
func attachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
