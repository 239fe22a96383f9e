package syncer

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"remote-sync/internal/auth"
	"remote-sync/internal/config"
	"remote-sync/internal/sshx"
	"remote-sync/internal/tools"
	"remote-sync/internal/util"
	"remote-sync/internal/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// channelRecorder stands in for the command channel; key auth always works
// so no prompt is involved.
type channelRecorder struct {
	commands []string
}

func (r *channelRecorder) Run(ctx context.Context, t sshx.Target, command string, ask *sshx.Askpass, timeout time.Duration) (string, error) {
	if command != "true" {
		r.commands = append(r.commands, command)
	}
	return "", nil
}

type harness struct {
	engine    *Engine
	channel   *channelRecorder
	log       *bytes.Buffer
	transfers []*transfer
	confirmed []string
	approve   bool
}

func newHarness(t *testing.T, available map[string]tools.Info) *harness {
	t.Helper()
	h := &harness{channel: &channelRecorder{}, log: &bytes.Buffer{}, approve: true}

	target := sshx.Target{Host: "example.com", User: "deploy", Port: "22"}
	neg := auth.NewNegotiator(h.channel, target, func(sshx.Target) (string, error) {
		return "", xerr.Cancelled("no prompt expected")
	})

	h.engine = NewEngine(tools.NewResolver(), h.channel, neg, target, util.NewSafePrinter(h.log), func(remote string) bool {
		h.confirmed = append(h.confirmed, remote)
		return h.approve
	})
	h.engine.resolve = func(name string) tools.Info { return available[name] }
	h.engine.execute = func(ctx context.Context, tr *transfer) error {
		h.transfers = append(h.transfers, tr)
		return nil
	}
	return h
}

func profile() *config.Profile {
	return &config.Profile{
		ProjectName: "demo",
		Username:    "deploy",
		Host:        "example.com",
		LocalPath:   "/work/demo",
		RemotePath:  "/home/u/proj",
	}
}

var bothTools = map[string]tools.Info{
	tools.Rsync: {Available: true, Path: "/usr/bin/rsync"},
	tools.Scp:   {Available: true, Path: "/usr/bin/scp"},
}

var scpOnly = map[string]tools.Info{
	tools.Scp: {Available: true, Path: "/usr/bin/scp"},
}

func TestPushPrefersRsync(t *testing.T) {
	// scenario: delete-on-sync off, rsync available
	h := newHarness(t, bothTools)

	err := h.engine.Push(context.Background(), profile(), false)
	require.NoError(t, err)

	require.Len(t, h.transfers, 1)
	tr := h.transfers[0]
	assert.Equal(t, "/usr/bin/rsync", tr.bin)
	assert.Contains(t, tr.args, "-az")
	assert.NotContains(t, tr.args, "--delete")
	assert.NotContains(t, tr.args, "--dry-run")
	// no remote delete step was issued
	assert.Empty(t, h.channel.commands)
	assert.Contains(t, h.log.String(), "completed successfully")
}

func TestPushRsyncArguments(t *testing.T) {
	h := newHarness(t, bothTools)
	p := profile()
	p.Sync.Excludes = []string{".git", "node_modules"}
	p.Sync.DeleteOnSync = true

	require.NoError(t, h.engine.Push(context.Background(), p, false))

	tr := h.transfers[0]
	joined := strings.Join(tr.args, " ")
	assert.Contains(t, joined, "--delete")
	assert.Contains(t, joined, "--exclude .git")
	assert.Contains(t, joined, "--exclude node_modules")
	assert.Contains(t, joined, "/work/demo/ ")
	assert.Contains(t, joined, "deploy@example.com:'/home/u/proj'")
	assert.Contains(t, joined, "-e ssh -p 22")
	// confirmation named the remote path
	assert.Equal(t, []string{"/home/u/proj"}, h.confirmed)
}

func TestPushRejectsRootRemote(t *testing.T) {
	h := newHarness(t, bothTools)
	p := profile()
	p.RemotePath = "/"

	err := h.engine.Push(context.Background(), p, false)
	assert.True(t, xerr.HasCode(err, xerr.CodeValidation))
	assert.Empty(t, h.transfers)

	// a trailing-slash spelling of root is caught too
	p.RemotePath = "///"
	err = h.engine.Push(context.Background(), p, false)
	assert.True(t, xerr.HasCode(err, xerr.CodeValidation))
}

func TestPushRejectsUnconfiguredRemote(t *testing.T) {
	h := newHarness(t, bothTools)
	p := profile()
	p.RemotePath = "  "

	err := h.engine.Push(context.Background(), p, false)
	assert.True(t, xerr.HasCode(err, xerr.CodeValidation))
	assert.Empty(t, h.transfers)
}

func TestPushDeclinedConfirmationAbortsCleanly(t *testing.T) {
	h := newHarness(t, bothTools)
	h.approve = false
	p := profile()
	p.Sync.DeleteOnSync = true

	err := h.engine.Push(context.Background(), p, false)
	assert.True(t, xerr.HasCode(err, xerr.CodeCancelled))
	assert.Empty(t, h.transfers)
	assert.Empty(t, h.channel.commands)
	assert.False(t, h.engine.Active())
}

func TestPushDryRunSkipsConfirmationAndDelete(t *testing.T) {
	h := newHarness(t, bothTools)
	p := profile()
	p.Sync.DeleteOnSync = true

	require.NoError(t, h.engine.Push(context.Background(), p, true))

	assert.Empty(t, h.confirmed)
	tr := h.transfers[0]
	assert.Contains(t, tr.args, "--dry-run")
	assert.NotContains(t, tr.args, "--delete")
}

func TestPushScpFallbackDeclinesDryRun(t *testing.T) {
	h := newHarness(t, scpOnly)

	err := h.engine.Push(context.Background(), profile(), true)
	require.NoError(t, err)

	assert.Empty(t, h.transfers, "no transfer may start")
	assert.Contains(t, h.log.String(), "dry run declined")
}

func TestPushScpFallbackWarnsDegradation(t *testing.T) {
	// any scp fallback is a degradation and must be announced, even with no
	// dry-run or excludes in play
	h := newHarness(t, scpOnly)

	require.NoError(t, h.engine.Push(context.Background(), profile(), false))

	assert.Contains(t, h.log.String(), "falling back to scp")
	require.Len(t, h.transfers, 1)
}

func TestPushScpFallbackWarnsAboutExcludes(t *testing.T) {
	h := newHarness(t, scpOnly)
	p := profile()
	p.Sync.Excludes = []string{".git"}

	require.NoError(t, h.engine.Push(context.Background(), p, false))

	assert.Contains(t, h.log.String(), "ignores exclude patterns")
	tr := h.transfers[0]
	assert.NotContains(t, strings.Join(tr.args, " "), "--exclude")
	assert.NotContains(t, strings.Join(tr.args, " "), "--dry-run")
}

func TestPushScpDeleteClearsOneLevel(t *testing.T) {
	h := newHarness(t, scpOnly)
	p := profile()
	p.Sync.DeleteOnSync = true

	require.NoError(t, h.engine.Push(context.Background(), p, false))

	require.Len(t, h.channel.commands, 1)
	clear := h.channel.commands[0]
	assert.Contains(t, clear, "rm -rf -- '/home/u/proj'/*")
	// dotted entries are cleared too, including names opening with two dots
	assert.Contains(t, clear, "'/home/u/proj'/.[!.]*")
	assert.Contains(t, clear, "'/home/u/proj'/..?*")
	// the clear happens only after confirmation
	assert.Equal(t, []string{"/home/u/proj"}, h.confirmed)

	tr := h.transfers[0]
	assert.Equal(t, "/usr/bin/scp", tr.bin)
	assert.Contains(t, tr.args, "-r")
	assert.Contains(t, tr.args, "/work/demo/.")
}

func TestPushNoToolAvailable(t *testing.T) {
	h := newHarness(t, map[string]tools.Info{})

	err := h.engine.Push(context.Background(), profile(), false)
	assert.True(t, xerr.HasCode(err, xerr.CodeToolUnavailable))
}

func TestPushMutualExclusion(t *testing.T) {
	h := newHarness(t, bothTools)
	release := make(chan struct{})
	started := make(chan struct{})
	h.engine.execute = func(ctx context.Context, tr *transfer) error {
		close(started)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- h.engine.Push(context.Background(), profile(), false) }()
	<-started

	err := h.engine.Push(context.Background(), profile(), false)
	assert.True(t, xerr.HasCode(err, xerr.CodeValidation))

	close(release)
	require.NoError(t, <-done)

	// and immediately afterwards a new push is possible
	h.engine.execute = func(context.Context, *transfer) error { return nil }
	assert.NoError(t, h.engine.Push(context.Background(), profile(), false))
}

func TestCancelIdleIsNoOp(t *testing.T) {
	h := newHarness(t, bothTools)
	h.engine.Cancel()
	h.engine.Cancel()
	assert.False(t, h.engine.Active())
}

func TestCancelActiveTransfer(t *testing.T) {
	h := newHarness(t, bothTools)
	started := make(chan struct{})
	h.engine.execute = func(ctx context.Context, tr *transfer) error {
		close(started)
		for {
			h.engine.mu.Lock()
			cancelled := tr.cancelled
			h.engine.mu.Unlock()
			if cancelled {
				return xerr.Cancelled("push")
			}
			time.Sleep(time.Millisecond)
		}
	}

	done := make(chan error, 1)
	go func() { done <- h.engine.Push(context.Background(), profile(), false) }()
	<-started

	h.engine.Cancel()
	err := <-done
	assert.True(t, xerr.HasCode(err, xerr.CodeCancelled))
	assert.False(t, h.engine.Active())

	// cancel after completion stays a no-op
	h.engine.Cancel()

	// a new push starts without error
	h.engine.execute = func(context.Context, *transfer) error { return nil }
	assert.NoError(t, h.engine.Push(context.Background(), profile(), false))
}

func TestProcessFailureSurfacesExitCode(t *testing.T) {
	h := newHarness(t, bothTools)
	h.engine.execute = func(ctx context.Context, tr *transfer) error {
		return xerr.Process("push rsync", 23, "rsync: some files could not be transferred")
	}

	err := h.engine.Push(context.Background(), profile(), false)
	require.Error(t, err)
	assert.True(t, xerr.HasCode(err, xerr.CodeProcess))
	assert.Contains(t, err.Error(), "exit 23")
	assert.Contains(t, h.log.String(), "Sync failed")
}

func TestExecuteTransferDrainsAllOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	h := newHarness(t, bothTools)
	const lines = 200000
	tr := &transfer{
		bin:  "/bin/sh",
		args: []string{"-c", fmt.Sprintf("seq 1 %d", lines)},
		tool: "rsync",
	}

	require.NoError(t, h.engine.executeTransfer(context.Background(), tr))

	// every line the process emitted must reach the operation log; a dropped
	// tail means the pipes were closed before being drained
	assert.Equal(t, lines, strings.Count(h.log.String(), "\n"))
}

func TestExecuteTransferStderrTailInProcessError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	h := newHarness(t, bothTools)
	tr := &transfer{
		bin:  "/bin/sh",
		args: []string{"-c", "echo partial transfer >&2; echo disk full >&2; exit 23"},
		tool: "rsync",
	}

	err := h.engine.executeTransfer(context.Background(), tr)
	require.Error(t, err)
	assert.True(t, xerr.HasCode(err, xerr.CodeProcess))
	assert.Contains(t, err.Error(), "exit 23")
	// the final stderr lines must survive into the error context
	assert.Contains(t, err.Error(), "disk full")
}

func TestCleanRemote(t *testing.T) {
	assert.Equal(t, "", cleanRemote("  "))
	assert.Equal(t, "/", cleanRemote("/"))
	assert.Equal(t, "/home/u", cleanRemote("/home/u/"))
	assert.Equal(t, "/home/u", cleanRemote("/home/u//"))
}

func TestWslPath(t *testing.T) {
	assert.Equal(t, "/mnt/c/work/proj", wslPath(`C:\work\proj`))
	assert.Equal(t, "/mnt/d/x", wslPath(`D:\x`))
	assert.Equal(t, "/already/posix", wslPath("/already/posix"))
}
