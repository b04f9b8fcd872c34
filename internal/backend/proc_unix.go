//go:build unix

package backend

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the backend in its own process group so Stop can
// take down any helpers it spawned.
func setProcessGroup(attr *syscall.SysProcAttr) {
	attr.Setpgid = true
}

func killProcess(cmd *exec.Cmd) error {
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
