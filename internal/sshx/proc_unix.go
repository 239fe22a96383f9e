//go:build !windows

package sshx

import (
	"os"
	"os/exec"
	"syscall"
)

// Detach puts the child in its own session: it loses the controlling
// terminal (required for SSH_ASKPASS to be consulted) and becomes the leader
// of a fresh process group so KillTree can take out any helpers it spawns.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// KillTree terminates p and every process in its group. The sync tool may be
// running through a compatibility-layer wrapper that would otherwise survive
// as an orphan.
func KillTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	if pgid, err := syscall.Getpgid(p.Pid); err == nil {
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}
	return p.Kill()
}
