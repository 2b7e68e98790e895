//go:build !linux && !windows

package engine

import "syscall"

// sysProcAttr relies on --stop-with-process for cleanup on this platform.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
