package cmd

import (
	"context"
	"time"

	"remote-sync/internal/config"
	"remote-sync/internal/events"
	"remote-sync/internal/history"
	"remote-sync/internal/syncer"
	"remote-sync/internal/util"

	"github.com/spf13/cobra"
)

var pushDryRun bool

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the local directory to the configured remote",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		rememberProfile()
		_ = doPush(cmd.Context(), cfg, pushDryRun)
	},
}

func init() {
	pushCmd.Flags().BoolVarP(&pushDryRun, "dry-run", "n", false,
		"report what would transfer without writing anything")
}

func doPush(ctx context.Context, cfg *config.Profile, dryRun bool) error {
	app, err := newAppSession(cfg)
	if err != nil {
		util.Default.Printf("❌ %v\n", err)
		return err
	}
	defer app.dispose()

	ctx, cancel := context.WithTimeout(ctx, syncer.PushTimeout)
	defer cancel()

	// Interrupt translates into a transfer cancel, not a hard exit, so the
	// remote is never left mid-write by a killed rsync parent.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			app.engine.Cancel()
		case <-done:
		}
	}()

	recorder := newRunRecorder(cfg, dryRun)
	defer recorder.detach()

	return app.engine.Push(ctx, cfg, dryRun)
}

// runRecorder listens to the sync lifecycle topics and appends one history
// row per finished transfer. Best-effort like the rest of history.
type runRecorder struct {
	store   *history.Store
	started func(string)
	done    func(string)
	tool    string
	begin   time.Time
}

func newRunRecorder(cfg *config.Profile, dryRun bool) *runRecorder {
	r := &runRecorder{}
	store, err := history.Open(history.DefaultPath())
	if err != nil {
		return r
	}
	r.store = store

	r.started = func(tool string) {
		r.tool = tool
		r.begin = time.Now()
	}
	r.done = func(status string) {
		_ = store.RecordRun(history.Run{
			Project:   cfg.ProjectName,
			Tool:      r.tool,
			DryRun:    dryRun,
			Status:    status,
			StartedAt: r.begin,
			Duration:  time.Since(r.begin),
		})
	}
	_ = events.Bus().Subscribe(events.TopicSyncStarted, r.started)
	_ = events.Bus().Subscribe(events.TopicSyncFinished, r.done)
	return r
}

func (r *runRecorder) detach() {
	if r.store == nil {
		return
	}
	_ = events.Bus().Unsubscribe(events.TopicSyncStarted, r.started)
	_ = events.Bus().Unsubscribe(events.TopicSyncFinished, r.done)
	r.store.Close()
}
