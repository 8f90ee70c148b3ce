//go:build windows

package relay

import (
	"os/exec"
	"syscall"
)

// newSessionAttr is a no-op on Windows: there is no POSIX session
// concept, so termination falls back to killing the process handle
// directly (spec §4.D step 5, §9).
func newSessionAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

func sigterm(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func sigkill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
