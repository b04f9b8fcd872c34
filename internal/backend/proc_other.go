//go:build !unix

package backend

import (
	"os/exec"
	"syscall"
)

func setProcessGroup(_ *syscall.SysProcAttr) {}

func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
