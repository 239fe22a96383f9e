//go:build windows

package sshx

import (
	"os"
	"os/exec"
	"strconv"
)

// Detach is a no-op on Windows; OpenSSH for Windows consults SSH_ASKPASS
// based on SSH_ASKPASS_REQUIRE alone.
func Detach(cmd *exec.Cmd) {}

// KillTree terminates p and its descendants via taskkill, covering transfers
// that run through the WSL wrapper process.
func KillTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(p.Pid)).Run()
}
