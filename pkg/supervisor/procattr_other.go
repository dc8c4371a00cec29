//go:build !linux

package supervisor

import "syscall"

// detachedAttr puts the child in a new session and process group.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// attachedAttr puts the child in its own process group. Pdeathsig is not
// available on non-Linux platforms.
func attachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
