package remotefs

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"remote-sync/internal/auth"
	"remote-sync/internal/sshx"
	"remote-sync/internal/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRunner plays the remote side: auth probes succeed, every other
// command is recorded and answered from the script.
type scriptedRunner struct {
	commands []string
	respond  func(command string) (string, error)
}

func (r *scriptedRunner) Run(ctx context.Context, t sshx.Target, command string, ask *sshx.Askpass, timeout time.Duration) (string, error) {
	if command == "true" {
		return "", nil
	}
	r.commands = append(r.commands, command)
	if r.respond != nil {
		return r.respond(command)
	}
	return "", nil
}

func newTestSession(runner *scriptedRunner) *Session {
	target := sshx.Target{Host: "example.com", User: "deploy"}
	neg := auth.NewNegotiator(runner, target, func(sshx.Target) (string, error) {
		return "", xerr.Cancelled("no prompt expected in tests")
	})
	return NewSession(runner, target, neg)
}

const listing = `total 8
drwxr-xr-x 2 deploy deploy 4096 1719830100 src
-rw-r--r-- 1 deploy deploy 1234 1719830200 main.go
`

func TestListDirectoryCachedWithinTTL(t *testing.T) {
	runner := &scriptedRunner{respond: func(string) (string, error) { return listing, nil }}
	s := newTestSession(runner)

	first, err := s.ListDirectory(context.Background(), "/home/u/proj")
	require.NoError(t, err)
	second, err := s.ListDirectory(context.Background(), "/home/u/proj")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// exactly one remote command for two calls within the TTL
	assert.Len(t, runner.commands, 1)
	assert.Contains(t, runner.commands[0], "'/home/u/proj'")
}

func TestListDirectoryTTLExpiry(t *testing.T) {
	runner := &scriptedRunner{respond: func(string) (string, error) { return listing, nil }}
	s := newTestSession(runner)

	clock := time.Now()
	s.now = func() time.Time { return clock }

	_, err := s.ListDirectory(context.Background(), "/home/u/proj")
	require.NoError(t, err)

	clock = clock.Add(DirCacheTTL + time.Second)
	_, err = s.ListDirectory(context.Background(), "/home/u/proj")
	require.NoError(t, err)

	assert.Len(t, runner.commands, 2)
}

func TestWriteFileInvalidatesParentListing(t *testing.T) {
	runner := &scriptedRunner{respond: func(cmd string) (string, error) {
		if strings.HasPrefix(cmd, "ls") {
			return listing, nil
		}
		return "", nil
	}}
	s := newTestSession(runner)

	_, err := s.ListDirectory(context.Background(), "/home/u/proj")
	require.NoError(t, err)

	err = s.WriteFile(context.Background(), "/home/u/proj/new.txt", []byte("hello"))
	require.NoError(t, err)

	_, err = s.ListDirectory(context.Background(), "/home/u/proj")
	require.NoError(t, err)

	// list, write, list again: the post-write listing must hit the remote
	listCount := 0
	for _, c := range runner.commands {
		if strings.HasPrefix(c, "ls") {
			listCount++
		}
	}
	assert.Equal(t, 2, listCount)
}

func TestWriteFileDoesNotInvalidateOtherDirs(t *testing.T) {
	runner := &scriptedRunner{respond: func(cmd string) (string, error) {
		if strings.HasPrefix(cmd, "ls") {
			return listing, nil
		}
		return "", nil
	}}
	s := newTestSession(runner)

	_, err := s.ListDirectory(context.Background(), "/var/log")
	require.NoError(t, err)

	require.NoError(t, s.WriteFile(context.Background(), "/home/u/proj/new.txt", []byte("x")))

	_, err = s.ListDirectory(context.Background(), "/var/log")
	require.NoError(t, err)

	listCount := 0
	for _, c := range runner.commands {
		if strings.HasPrefix(c, "ls") {
			listCount++
		}
	}
	assert.Equal(t, 1, listCount)
}

func TestReadFileDecodesBase64(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xff, 'h', 'i'}
	runner := &scriptedRunner{respond: func(cmd string) (string, error) {
		// remote base64 wraps lines; the session must tolerate that
		enc := base64.StdEncoding.EncodeToString(payload)
		return enc[:4] + "\n" + enc[4:] + "\n", nil
	}}
	s := newTestSession(runner)

	data, err := s.ReadFile(context.Background(), "/home/u/blob.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "base64 '/home/u/blob.bin'", runner.commands[0])
}

func TestWriteFileEncodesAndQuotes(t *testing.T) {
	runner := &scriptedRunner{}
	s := newTestSession(runner)

	content := []byte("line one\nline two\n")
	err := s.WriteFile(context.Background(), "/home/u/it's here.txt", content)
	require.NoError(t, err)

	require.Len(t, runner.commands, 1)
	cmd := runner.commands[0]
	assert.Contains(t, cmd, base64.StdEncoding.EncodeToString(content))
	assert.Contains(t, cmd, "base64 -d")
	assert.Contains(t, cmd, `'/home/u/it'\''s here.txt'`)
	// raw content never appears in the remote command
	assert.NotContains(t, cmd, "line one")
}

func TestStatUsesFallbackProbe(t *testing.T) {
	runner := &scriptedRunner{respond: func(cmd string) (string, error) {
		return "directory|4096|1719830000", nil
	}}
	s := newTestSession(runner)

	e, err := s.Stat(context.Background(), "/home/u/proj/")
	require.NoError(t, err)
	assert.True(t, e.IsDir)
	assert.Equal(t, "proj", e.Name)

	// one invocation carrying both stat dialects
	require.Len(t, runner.commands, 1)
	assert.Contains(t, runner.commands[0], "stat -c")
	assert.Contains(t, runner.commands[0], "stat -f")
}

func TestClearCacheForcesRefetch(t *testing.T) {
	runner := &scriptedRunner{respond: func(string) (string, error) { return listing, nil }}
	s := newTestSession(runner)

	_, _ = s.ListDirectory(context.Background(), "/srv")
	s.ClearCache()
	_, _ = s.ListDirectory(context.Background(), "/srv")

	assert.Len(t, runner.commands, 2)
}

func TestMutationOperationsUnsupported(t *testing.T) {
	s := newTestSession(&scriptedRunner{})

	assert.True(t, xerr.HasCode(s.Mkdir("/x"), xerr.CodeNotSupported))
	assert.True(t, xerr.HasCode(s.Remove("/x"), xerr.CodeNotSupported))
	assert.True(t, xerr.HasCode(s.Rename("/x", "/y"), xerr.CodeNotSupported))
	assert.Empty(t, (&scriptedRunner{}).commands)
}

func TestDisposeResetsSession(t *testing.T) {
	runner := &scriptedRunner{respond: func(string) (string, error) { return listing, nil }}
	s := newTestSession(runner)

	_, err := s.ListDirectory(context.Background(), "/srv")
	require.NoError(t, err)

	s.Dispose()

	_, err = s.ListDirectory(context.Background(), "/srv")
	require.NoError(t, err)
	// cache was dropped with the session state
	assert.Len(t, runner.commands, 2)
}
