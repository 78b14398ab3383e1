//go:build !windows

package backend

import (
	"os"
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the backend in its own process group so a
// terminal Ctrl+C reaches only the supervisor, and so termination signals
// cover any workers the backend forks.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGTERM); err != nil {
		return p.Signal(syscall.SIGTERM)
	}
	return nil
}

func killProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}
