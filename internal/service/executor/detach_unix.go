//go:build !windows

package executor

import "syscall"

// detachedAttr puts the child in a new session so it survives the parent
// and its controlling terminal.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
