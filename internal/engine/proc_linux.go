package engine

import "syscall"

// sysProcAttr kills the engine when the launching thread's process dies.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
