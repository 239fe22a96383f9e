// Package auth implements layered authentication against one remote target:
// try key-based auth first, fall back to collecting a password exactly once
// per session and routing it through a disposable askpass helper.
package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"remote-sync/internal/sshx"
	"remote-sync/internal/xerr"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// State of the negotiation for one session.
type State int

const (
	Unauthenticated State = iota
	KeyAttempted
	AwaitingSecret
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case KeyAttempted:
		return "key-attempted"
	case AwaitingSecret:
		return "awaiting-secret"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// PromptFunc collects a secret for the target. It must return a
// CodeCancelled error when the user backs out.
type PromptFunc func(t sshx.Target) (string, error)

// Negotiator drives the key-then-password flow for one target. All methods
// are serialized: two concurrent operations on one session can never race
// into two password prompts.
type Negotiator struct {
	mu     sync.Mutex
	runner sshx.Runner
	target sshx.Target
	prompt PromptFunc

	state State
	ask   *sshx.Askpass
}

func NewNegotiator(runner sshx.Runner, target sshx.Target, prompt PromptFunc) *Negotiator {
	if prompt == nil {
		prompt = TerminalPrompt
	}
	return &Negotiator{runner: runner, target: target, prompt: prompt}
}

// State reports the current negotiation state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Ensure authenticates the session if it is not already authenticated and
// returns the askpass helper to attach to subsequent commands (nil when key
// auth succeeded). Idempotent: once Authenticated it returns immediately;
// once Failed it keeps failing until Dispose resets the session.
func (n *Negotiator) Ensure(ctx context.Context) (*sshx.Askpass, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case Authenticated:
		return n.ask, nil
	case Failed:
		return nil, xerr.Auth("authenticate", "authentication already failed this session", nil)
	}

	// Key attempt: a trivial command in batch mode. Success means the whole
	// password flow is skipped for the session.
	n.state = KeyAttempted
	if _, err := n.runner.Run(ctx, n.target, "true", nil, sshx.ShortTimeout); err == nil {
		n.state = Authenticated
		return nil, nil
	} else if xerr.HasCode(err, xerr.CodeTimeout) || xerr.HasCode(err, xerr.CodeCancelled) {
		// not an auth problem; do not burn the session's single prompt
		n.state = Unauthenticated
		return nil, err
	}

	n.state = AwaitingSecret
	secret, err := n.prompt(n.target)
	if err != nil {
		n.state = Failed
		if xerr.HasCode(err, xerr.CodeCancelled) {
			return nil, err
		}
		return nil, xerr.Auth("authenticate", "secret prompt failed", err)
	}

	ask, err := sshx.NewAskpass(n.target, secret)
	if err != nil {
		n.state = Failed
		return nil, xerr.Auth("authenticate", "could not materialize askpass helper", err)
	}

	if _, err := n.runner.Run(ctx, n.target, "true", ask, sshx.ShortTimeout); err != nil {
		ask.Remove()
		n.state = Failed
		return nil, xerr.Auth("authenticate", fmt.Sprintf("password rejected for %s", n.target.Destination()), err)
	}

	n.ask = ask
	n.state = Authenticated
	return n.ask, nil
}

// Dispose deletes the helper artifact and resets the machine so a later use
// of the session restarts the full negotiation, key attempt first.
func (n *Negotiator) Dispose() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ask != nil {
		n.ask.Remove()
		n.ask = nil
	}
	n.state = Unauthenticated
}

// TerminalPrompt is the default PromptFunc: a masked promptui prompt, gated
// on stdin being a real terminal.
func TerminalPrompt(t sshx.Target) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", xerr.Auth("prompt", "no terminal available for password entry", nil)
	}
	prompt := promptui.Prompt{
		Label: fmt.Sprintf("🔑 Password for %s", t.Destination()),
		Mask:  '*',
	}
	secret, err := prompt.Run()
	if err != nil {
		// promptui reports ^C as ErrInterrupt; treat any abort as cancellation
		return "", xerr.Cancelled("password prompt")
	}
	return secret, nil
}
