package backend

import "syscall"

// setPdeathsig sets Pdeathsig so the backend dies if we crash.
// Only available on Linux.
func setPdeathsig(attr *syscall.SysProcAttr) {
	attr.Pdeathsig = syscall.SIGTERM
}
