// Package sshx is the command channel: every remote operation in the system
// ultimately becomes one invocation of the external ssh binary built here.
// It never speaks the SSH wire protocol itself; the channel is a restricted
// one-shot `ssh user@host 'command'` with captured output.
package sshx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"remote-sync/internal/xerr"
)

// Timeouts carried by every remote command. Interactive probes use the short
// one so a dead host does not stall browsing; content transfers (base64
// read/write) get the long one.
const (
	ShortTimeout    = 15 * time.Second
	TransferTimeout = 10 * time.Minute
)

// Target identifies one remote endpoint. Immutable per operation.
type Target struct {
	Host         string
	User         string // optional
	Port         string // optional, ssh default when empty
	IdentityFile string // optional path to a private key
}

// Destination renders the ssh destination argument (user@host or host).
func (t Target) Destination() string {
	if t.User != "" {
		return t.User + "@" + t.Host
	}
	return t.Host
}

// SessionKey is a stable identifier for one endpoint, used to key per-target
// artifacts so two sessions against different hosts never collide.
func (t Target) SessionKey() string {
	return t.Destination() + ":" + t.Port
}

// ShellQuote wraps s in single quotes with embedded single quotes escaped as
// '\'' so the remote shell reproduces s exactly. Every path or string that
// becomes remote shell text MUST go through this; an unescaped path is a
// remote command-injection vector.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// BuildArgs deterministically builds the argv for one remote command
// execution (everything after the ssh binary itself). batch forces
// non-interactive mode so a password prompt can never hang the caller;
// it is on exactly when no credential is in play.
func BuildArgs(t Target, batch bool, command string) []string {
	args := []string{}
	if t.Port != "" {
		args = append(args, "-p", t.Port)
	}
	if t.IdentityFile != "" {
		args = append(args, "-i", t.IdentityFile)
	}
	args = append(args,
		// accept-new pins unknown hosts but still refuses changed keys
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "ServerAliveInterval=15",
		"-o", "ServerAliveCountMax=3",
	)
	if batch {
		args = append(args, "-o", "BatchMode=yes")
	}
	args = append(args, t.Destination(), command)
	return args
}

// Runner executes one remote command. The concrete Client shells out;
// tests substitute a recorder.
type Runner interface {
	Run(ctx context.Context, t Target, command string, ask *Askpass, timeout time.Duration) (string, error)
}

// Client runs remote commands through the external ssh binary.
type Client struct {
	SSHPath string // resolved ssh binary, "ssh" when empty
}

func NewClient(sshPath string) *Client {
	if sshPath == "" {
		sshPath = "ssh"
	}
	return &Client{SSHPath: sshPath}
}

// Run executes command on t and returns its stdout. A nil ask runs in batch
// mode (key auth only); otherwise the askpass helper is wired in through the
// environment so the secret never appears in argv or a process listing.
func (c *Client) Run(ctx context.Context, t Target, command string, ask *Askpass, timeout time.Duration) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.SSHPath, BuildArgs(t, ask == nil, command)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if ask != nil {
		cmd.Env = append(os.Environ(), ask.Env()...)
		// ssh only consults SSH_ASKPASS when it has no controlling terminal
		Detach(cmd)
	}

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return "", xerr.Timeout("execute "+c.SSHPath, runCtx.Err())
	}
	if ctx.Err() != nil {
		return "", xerr.Cancelled("execute " + c.SSHPath)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		errText := strings.TrimSpace(stderr.String())
		if isAuthFailure(code, errText) {
			return "", xerr.Auth("execute "+c.SSHPath, errText, err)
		}
		return "", xerr.Process("execute "+c.SSHPath, code, errText)
	}
	return "", xerr.Process("execute "+c.SSHPath, -1, err.Error())
}

// isAuthFailure distinguishes the ssh client refusing to authenticate from a
// remote command that legitimately exited non-zero. ssh itself exits 255.
func isAuthFailure(code int, stderr string) bool {
	if code != 255 {
		return false
	}
	for _, marker := range []string{
		"Permission denied",
		"Too many authentication failures",
		"No supported authentication methods",
	} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
