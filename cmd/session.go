package cmd

import (
	"fmt"

	"remote-sync/internal/auth"
	"remote-sync/internal/config"
	"remote-sync/internal/remotefs"
	"remote-sync/internal/sshx"
	"remote-sync/internal/syncer"
	"remote-sync/internal/tools"
	"remote-sync/internal/util"
	"remote-sync/internal/xerr"
)

// appSession wires one profile to the full stack: command channel,
// credential negotiation, remote session and sync engine. Everything shares
// one negotiator so the user is asked for a password at most once.
type appSession struct {
	cfg     *config.Profile
	session *remotefs.Session
	engine  *syncer.Engine
	runner  sshx.Runner
	neg     *auth.Negotiator
}

func newAppSession(cfg *config.Profile) (*appSession, error) {
	resolver := tools.NewResolver()

	sshInfo := resolver.Resolve(tools.SSH)
	if !sshInfo.Available {
		return nil, fmt.Errorf("%w: the ssh client binary is required", xerr.ToolUnavailable("ssh"))
	}

	target := cfg.Target()
	runner := sshx.NewClient(sshInfo.Path)
	neg := auth.NewNegotiator(runner, target, nil)
	session := remotefs.NewSession(runner, target, neg)
	engine := syncer.NewEngine(resolver, runner, neg, target, util.Default, nil)

	return &appSession{cfg: cfg, session: session, engine: engine, runner: runner, neg: neg}, nil
}

func (a *appSession) dispose() {
	a.session.Dispose()
}
