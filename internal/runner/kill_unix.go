//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the child into its own process group and replaces the
// context kill with a group-wide SIGKILL, so children spawned by the tool
// (nmap helper processes and the like) die with it on timeout or cancel.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
