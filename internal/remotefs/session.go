// Package remotefs exposes a pseudo-filesystem over one remote target,
// built entirely out of one-shot shell invocations through the command
// channel, with a TTL cache to keep interactive browsing responsive.
package remotefs

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"remote-sync/internal/auth"
	"remote-sync/internal/events"
	"remote-sync/internal/sshx"
	"remote-sync/internal/xerr"

	"github.com/cespare/xxhash/v2"
)

// DirCacheTTL is the validity window for a cached directory listing.
// Listings observed within the window may be stale relative to true remote
// state; that is an accepted trade-off for interactivity.
const DirCacheTTL = 30 * time.Second

type cacheEntry struct {
	entries []Entry
	at      time.Time
}

// Session is a stateful façade over the command channel for one target.
// All operations on one session are serialized: no two remote commands (or
// password negotiations) ever run concurrently for the same credential
// state.
type Session struct {
	mu     sync.Mutex
	runner sshx.Runner
	target sshx.Target
	neg    *auth.Negotiator

	cache map[uint64]cacheEntry
	ttl   time.Duration
	now   func() time.Time

	connected bool
}

func NewSession(runner sshx.Runner, target sshx.Target, neg *auth.Negotiator) *Session {
	return &Session{
		runner: runner,
		target: target,
		neg:    neg,
		cache:  map[uint64]cacheEntry{},
		ttl:    DirCacheTTL,
		now:    time.Now,
	}
}

func (s *Session) Target() sshx.Target { return s.target }

// Negotiator exposes the session's credential state to collaborators that
// issue their own commands through the same channel (the directory browser).
func (s *Session) Negotiator() *auth.Negotiator { return s.neg }

// Runner exposes the underlying command channel for those collaborators.
func (s *Session) Runner() sshx.Runner { return s.runner }

// Invalidate drops the cached listing for p, if any.
func (s *Session) Invalidate(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, cacheKey(normalize(p)))
}

func cacheKey(p string) uint64 { return xxhash.Sum64String(p) }

// ListDirectory lists p, serving from cache within the TTL. Dotfile
// pseudo-entries "." and ".." are excluded and malformed lines skipped.
func (s *Session) ListDirectory(ctx context.Context, p string) ([]Entry, error) {
	p = normalize(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	if hit, ok := s.cache[cacheKey(p)]; ok && s.now().Sub(hit.at) < s.ttl {
		return append([]Entry(nil), hit.entries...), nil
	}

	out, err := s.run(ctx, listCommand(p), sshx.ShortTimeout)
	if err != nil {
		return nil, err
	}

	entries := parseListing(out)
	s.cache[cacheKey(p)] = cacheEntry{entries: entries, at: s.now()}
	return append([]Entry(nil), entries...), nil
}

// Stat classifies p as directory or regular file plus size and mtime. The
// probe tries the GNU stat format and falls back to the BSD one in the same
// remote invocation; unparseable output yields zeroed defaults since callers
// treat stat primarily as a discriminator.
func (s *Session) Stat(ctx context.Context, p string) (Entry, error) {
	p = normalize(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	q := sshx.ShellQuote(p)
	out, err := s.run(ctx, fmt.Sprintf("stat -c '%%F|%%s|%%Y' %s 2>/dev/null || stat -f '%%HT|%%z|%%m' %s", q, q), sshx.ShortTimeout)
	if err != nil {
		return Entry{}, err
	}
	return parseStat(path.Base(p), out), nil
}

// ReadFile returns the contents of p. The transfer is binary-safe: the
// remote side encodes to base64 and this side decodes.
func (s *Session) ReadFile(ctx context.Context, p string) ([]byte, error) {
	p = normalize(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.run(ctx, "base64 "+sshx.ShellQuote(p), sshx.TransferTimeout)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(stripSpace(out))
	if err != nil {
		return nil, fmt.Errorf("readFile %s: undecodable remote output: %w", p, err)
	}
	return data, nil
}

// WriteFile replaces the contents of p. The parent directory's cache entry
// is invalidated before returning, so a subsequent listing is guaranteed
// fresh.
func (s *Session) WriteFile(ctx context.Context, p string, data []byte) error {
	p = normalize(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	encoded := base64.StdEncoding.EncodeToString(data)
	cmd := fmt.Sprintf("printf '%%s' %s | base64 -d > %s", sshx.ShellQuote(encoded), sshx.ShellQuote(p))
	if _, err := s.run(ctx, cmd, sshx.TransferTimeout); err != nil {
		return err
	}
	delete(s.cache, cacheKey(path.Dir(p)))
	return nil
}

// Mkdir, Remove and Rename are unsupported: emulating filesystem mutation
// over one-shot commands is out of scope for the session.
func (s *Session) Mkdir(string) error  { return xerr.NotSupported("createDirectory") }
func (s *Session) Remove(string) error { return xerr.NotSupported("delete") }
func (s *Session) Rename(string, string) error {
	return xerr.NotSupported("rename")
}

// ClearCache drops every cached listing; the next ListDirectory on any path
// re-queries the remote host.
func (s *Session) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[uint64]cacheEntry{}
}

// Dispose tears the session down: the askpass artifact is deleted, the
// negotiation reset and the cache dropped. The session may be used again
// afterwards; authentication restarts from the key attempt.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.neg.Dispose()
	s.cache = map[uint64]cacheEntry{}
	if s.connected {
		s.connected = false
		events.Bus().Publish(events.TopicConnState, false)
	}
}

// run authenticates (a no-op once the session is authenticated) and issues
// one remote command. Callers hold s.mu.
func (s *Session) run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	ask, err := s.neg.Ensure(ctx)
	if err != nil {
		return "", err
	}
	if !s.connected {
		s.connected = true
		events.Bus().Publish(events.TopicConnState, true)
	}
	return s.runner.Run(ctx, s.target, command, ask, timeout)
}

func listCommand(p string) string {
	q := sshx.ShellQuote(p)
	return fmt.Sprintf("ls -la --time-style=+%%s %s 2>/dev/null || ls -la %s", q, q)
}

// normalize keeps remote paths absolute and canonical: cleaned, no trailing
// slash except root.
func normalize(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
}
