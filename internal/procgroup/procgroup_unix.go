//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Configure starts cmd as the leader of a new process group so signals also
// reach any helpers it forks.
func Configure(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Terminate asks the whole group to exit.
func Terminate(cmd *exec.Cmd) error {
	return signal(cmd, unix.SIGTERM)
}

// Kill stops the whole group immediately.
func Kill(cmd *exec.Cmd) error {
	return signal(cmd, unix.SIGKILL)
}

func signal(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
