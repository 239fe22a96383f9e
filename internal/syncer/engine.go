// Package syncer orchestrates one-way push synchronization: precondition
// checks, tool selection with graceful degradation, the destructive-option
// confirmation gate, streaming the external transfer process and
// cooperative cancellation.
package syncer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"
	"sync"
	"time"

	"remote-sync/internal/auth"
	"remote-sync/internal/config"
	"remote-sync/internal/events"
	"remote-sync/internal/sshx"
	"remote-sync/internal/tools"
	"remote-sync/internal/util"
	"remote-sync/internal/xerr"

	"github.com/manifoldco/promptui"
)

// ConfirmFunc asks the user to approve a destructive operation against
// remotePath. Returning false aborts the push with no state change.
type ConfirmFunc func(remotePath string) bool

// transfer is the handle to one running external process. At most one
// exists per engine; its presence is the "a sync is already running" gate.
type transfer struct {
	bin       string
	args      []string
	env       []string
	tool      string
	cmd       *exec.Cmd
	cancelled bool
}

// Engine runs push operations for one target.
type Engine struct {
	mu     sync.Mutex
	active *transfer

	runner  sshx.Runner
	neg     *auth.Negotiator
	target  sshx.Target
	printer *util.SafePrinter
	confirm ConfirmFunc

	// seams for tests
	resolve func(string) tools.Info
	execute func(ctx context.Context, tr *transfer) error
}

func NewEngine(resolver *tools.Resolver, runner sshx.Runner, neg *auth.Negotiator, target sshx.Target, printer *util.SafePrinter, confirm ConfirmFunc) *Engine {
	if printer == nil {
		printer = util.Default
	}
	if confirm == nil {
		confirm = modalConfirm
	}
	e := &Engine{
		runner:  runner,
		neg:     neg,
		target:  target,
		printer: printer,
		confirm: confirm,
		resolve: resolver.Resolve,
	}
	e.execute = e.executeTransfer
	return e
}

// Push synchronizes the profile's local directory to its remote directory.
// Preconditions are checked in order, first failure wins: no transfer
// already active, then a configured non-root remote directory.
func (e *Engine) Push(ctx context.Context, profile *config.Profile, dryRun bool) error {
	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return xerr.Validation("a sync is already running")
	}
	e.mu.Unlock()

	remote := cleanRemote(profile.RemotePath)
	if remote == "" {
		return xerr.Validation("remote target directory is not configured")
	}
	if remote == "/" {
		return xerr.Validation("refusing to sync against the filesystem root")
	}

	rsync := e.resolve(tools.Rsync)
	usingRsync := rsync.Available
	var tool tools.Info
	if usingRsync {
		tool = rsync
	} else {
		scp := e.resolve(tools.Scp)
		if !scp.Available {
			return xerr.ToolUnavailable("rsync or scp")
		}
		tool = scp
		e.printer.Println("⚠️  rsync is not available; falling back to scp (full copy, no incremental transfer)")
		if dryRun {
			// decline rather than silently ignore the request
			e.printer.Println("⚠️  scp does not support dry runs; dry run declined")
			return nil
		}
		if len(profile.Sync.Excludes) > 0 {
			e.printer.Println("⚠️  scp fallback ignores exclude patterns; everything under the local directory will be copied")
		}
	}

	if profile.Sync.DeleteOnSync && !dryRun {
		if !e.confirm(remote) {
			return xerr.Cancelled("push")
		}
	}

	// scp has no delete-extraneous capability. When delete-on-sync was
	// requested the remote target's contents are cleared one level deep
	// before copying. This is intentionally shallower than rsync's
	// recursive --delete; the two tools' delete semantics are distinct.
	if !usingRsync && profile.Sync.DeleteOnSync {
		ask, err := e.neg.Ensure(ctx)
		if err != nil {
			return err
		}
		q := sshx.ShellQuote(remote)
		// three globs cover plain names, single-dot names and names opening
		// with two dots, while leaving . and .. alone
		clear := fmt.Sprintf("rm -rf -- %s/* %s/.[!.]* %s/..?* 2>/dev/null; true", q, q, q)
		if _, err := e.runner.Run(ctx, e.target, clear, ask, sshx.TransferTimeout); err != nil {
			return err
		}
		e.printer.Printf("🧹 Cleared remote directory %s (one level)\n", remote)
	}

	// Authenticate before spawning so the transfer process inherits the
	// askpass wiring when the session runs on a password.
	ask, err := e.neg.Ensure(ctx)
	if err != nil {
		return err
	}

	tr := &transfer{tool: toolLabel(usingRsync)}
	if usingRsync {
		tr.bin, tr.args = e.rsyncCommand(tool, profile, remote, dryRun)
	} else {
		tr.bin, tr.args = e.scpCommand(tool, profile, remote)
	}
	if ask != nil {
		tr.env = append(os.Environ(), ask.Env()...)
	}

	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return xerr.Validation("a sync is already running")
	}
	e.active = tr
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.active == tr {
			e.active = nil
		}
		e.mu.Unlock()
	}()

	e.printer.Printf("🚀 Starting %s push to %s:%s\n", tr.tool, e.target.Destination(), remote)
	events.Bus().Publish(events.TopicSyncStarted, tr.tool)

	err = e.execute(ctx, tr)
	switch {
	case err == nil:
		e.printer.Println("✅ Sync completed successfully")
		events.Bus().Publish(events.TopicSyncFinished, "completed")
	case xerr.HasCode(err, xerr.CodeCancelled):
		e.printer.Println("⏹ Sync cancelled")
		events.Bus().Publish(events.TopicSyncFinished, "cancelled")
	default:
		e.printer.Printf("❌ Sync failed: %v\n", err)
		events.Bus().Publish(events.TopicSyncFinished, "failed")
	}
	return err
}

// Cancel terminates the active transfer and its whole process tree, then
// clears the handle so a new push can start immediately. Safe no-op when
// nothing is running; safe to call repeatedly.
func (e *Engine) Cancel() {
	e.mu.Lock()
	tr := e.active
	if tr == nil {
		e.mu.Unlock()
		return
	}
	tr.cancelled = true
	cmd := tr.cmd
	e.active = nil
	e.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = sshx.KillTree(cmd.Process)
	}
}

// Active reports whether a transfer is currently running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

func (e *Engine) rsyncCommand(tool tools.Info, profile *config.Profile, remote string, dryRun bool) (string, []string) {
	args := []string{"-az"}
	if dryRun {
		args = append(args, "--dry-run", "-v")
	}
	if profile.Sync.DeleteOnSync && !dryRun {
		args = append(args, "--delete")
	}
	for _, pattern := range profile.Sync.Excludes {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, "-e", remoteShell(e.target))

	local := profile.LocalPath
	if tool.UsesCompatLayer {
		local = wslPath(local)
	}
	// trailing slash: sync the directory's contents, not the directory
	args = append(args, strings.TrimRight(local, "/")+"/")
	// the remote path is expanded by the remote shell and must be quoted
	args = append(args, e.target.Destination()+":"+sshx.ShellQuote(remote))

	if tool.UsesCompatLayer {
		return tool.Path, append([]string{"--", "rsync"}, args...)
	}
	return tool.Path, args
}

func (e *Engine) scpCommand(tool tools.Info, profile *config.Profile, remote string) (string, []string) {
	args := []string{"-r"}
	if e.target.Port != "" {
		args = append(args, "-P", e.target.Port)
	}
	if e.target.IdentityFile != "" {
		args = append(args, "-i", e.target.IdentityFile)
	}
	args = append(args,
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "ServerAliveInterval=15",
		"-o", "ServerAliveCountMax=3",
	)
	// local/. copies the directory's contents like rsync's trailing slash
	args = append(args, strings.TrimRight(profile.LocalPath, "/")+"/.")
	args = append(args, e.target.Destination()+":"+sshx.ShellQuote(remote))
	return tool.Path, args
}

// executeTransfer spawns the external tool and streams its output line by
// line into the operation log as it arrives; multi-minute transfers must
// surface progress, not a buffered dump at the end.
func (e *Engine) executeTransfer(ctx context.Context, tr *transfer) error {
	cmd := exec.CommandContext(ctx, tr.bin, tr.args...)
	if tr.env != nil {
		cmd.Env = tr.env
	}
	// own process group, so cancellation can take out compat-layer
	// intermediaries; also detaches the tty for askpass
	sshx.Detach(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return xerr.Process("push", -1, err.Error())
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return xerr.Process("push", -1, err.Error())
	}

	if err := cmd.Start(); err != nil {
		return xerr.Process("push", -1, err.Error())
	}

	e.mu.Lock()
	tr.cmd = cmd
	alreadyCancelled := tr.cancelled
	e.mu.Unlock()
	if alreadyCancelled {
		_ = sshx.KillTree(cmd.Process)
	}

	var wg sync.WaitGroup
	var tailMu sync.Mutex
	var stderrTail []string
	stream := func(r io.Reader, isErr bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			e.printer.Line(line)
			events.Bus().Publish(events.TopicSyncLine, line)
			if isErr {
				tailMu.Lock()
				stderrTail = append(stderrTail, line)
				if len(stderrTail) > 20 {
					stderrTail = stderrTail[1:]
				}
				tailMu.Unlock()
			}
		}
	}
	wg.Add(2)
	go stream(stdout, false)
	go stream(stderr, true)

	// both pipes must be fully drained before Wait; Wait closes them on
	// process exit and any buffered tail would be lost
	wg.Wait()
	waitErr := cmd.Wait()

	e.mu.Lock()
	cancelled := tr.cancelled
	e.mu.Unlock()

	if waitErr == nil {
		return nil
	}
	if cancelled || ctx.Err() != nil {
		return xerr.Cancelled("push")
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if exitErr.ExitCode() == -1 {
			// terminated by a signal without Cancel being called
			return xerr.Cancelled("push")
		}
		return xerr.Process("push "+tr.tool, exitErr.ExitCode(), strings.Join(stderrTail, "\n"))
	}
	return xerr.Process("push "+tr.tool, -1, waitErr.Error())
}

// remoteShell renders the transport command rsync hands the remote leg to,
// mirroring the command channel's argv.
func remoteShell(t sshx.Target) string {
	parts := []string{"ssh"}
	if t.Port != "" {
		parts = append(parts, "-p", t.Port)
	}
	if t.IdentityFile != "" {
		parts = append(parts, "-i", sshx.ShellQuote(t.IdentityFile))
	}
	parts = append(parts,
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "ServerAliveInterval=15",
		"-o", "ServerAliveCountMax=3",
	)
	return strings.Join(parts, " ")
}

// cleanRemote normalizes the remote directory: absolute, no trailing slash
// except root. Empty input stays empty so the caller can distinguish
// "unconfigured" from root.
func cleanRemote(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

func toolLabel(usingRsync bool) string {
	if usingRsync {
		return tools.Rsync
	}
	return tools.Scp
}

// wslPath maps a Windows path onto the WSL mount layout
// (C:\work\proj -> /mnt/c/work/proj).
func wslPath(p string) string {
	if len(p) >= 2 && p[1] == ':' {
		drive := strings.ToLower(p[:1])
		rest := strings.ReplaceAll(p[2:], `\`, "/")
		return "/mnt/" + drive + rest
	}
	return strings.ReplaceAll(p, `\`, "/")
}

// modalConfirm is the default destructive-operation gate: an explicit
// promptui confirmation naming the remote path.
func modalConfirm(remotePath string) bool {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("⚠️  delete-on-sync will remove files under %s that do not exist locally. Proceed", remotePath),
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

// PushTimeout bounds one entire push; callers wrap their context with it.
const PushTimeout = 60 * time.Minute
