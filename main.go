package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"remote-sync/cmd"
	"remote-sync/internal/util"

	"golang.org/x/term"
)

func main() {
	// Capture original terminal state (if stdin is a TTY) so we can restore it
	// after interactive prompts even on forced exit.
	var origState *term.State
	if fi, _ := os.Stdin.Stat(); (fi.Mode() & os.ModeCharDevice) != 0 {
		if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
			origState = st
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)

	util.Default.ClearLine()
	if origState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), origState)
	}
	if err != nil {
		os.Exit(1)
	}
}
