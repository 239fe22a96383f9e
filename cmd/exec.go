package cmd

import (
	"context"
	"strings"
	"time"

	"remote-sync/internal/config"
	"remote-sync/internal/util"

	"github.com/spf13/cobra"
)

// execTimeout bounds one ad-hoc remote command. Long enough for package
// installs, short enough that a dead link surfaces.
const execTimeout = 5 * time.Minute

var execCmd = &cobra.Command{
	Use:   "exec -- command [args...]",
	Short: "Run a one-shot command on the remote host",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		rememberProfile()
		doExec(cmd.Context(), cfg, strings.Join(args, " "))
	},
}

func doExec(ctx context.Context, cfg *config.Profile, command string) {
	app, err := newAppSession(cfg)
	if err != nil {
		util.Default.Printf("❌ %v\n", err)
		return
	}
	defer app.dispose()

	ask, err := app.neg.Ensure(ctx)
	if err != nil {
		util.Default.Printf("❌ %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	out, err := app.runner.Run(ctx, cfg.Target(), command, ask, execTimeout)
	if err != nil {
		util.Default.Printf("❌ %v\n", err)
		return
	}
	out = strings.TrimRight(out, "\n")
	if out != "" {
		util.Default.Println(out)
	}
}
