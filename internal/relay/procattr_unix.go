//go:build !windows

package relay

import (
	"os/exec"
	"syscall"
)

// newSessionAttr puts the child in its own session so the whole process
// group can be killed in one shot (spec §4.D step 2, §9).
func newSessionAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// terminate sends sig to the child's whole process group.
func terminate(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

func sigterm(cmd *exec.Cmd) error { return terminate(cmd, syscall.SIGTERM) }
func sigkill(cmd *exec.Cmd) error { return terminate(cmd, syscall.SIGKILL) }
