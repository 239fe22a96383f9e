package cmd

import (
	"context"

	"remote-sync/internal/browser"
	"remote-sync/internal/config"
	"remote-sync/internal/util"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Pick a remote directory interactively",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		rememberProfile()
		doBrowse(cmd.Context(), cfg)
	},
}

func doBrowse(ctx context.Context, cfg *config.Profile) {
	app, err := newAppSession(cfg)
	if err != nil {
		util.Default.Printf("❌ %v\n", err)
		return
	}
	defer app.dispose()

	start := cfg.RemotePath
	if start == "" {
		start = "/"
	}

	picked, err := browser.New(app.session, nil).Pick(ctx, start)
	if err != nil {
		util.Default.Printf("❌ Browse failed: %v\n", err)
		return
	}
	if picked == "" {
		util.Default.Println("⏹ Nothing selected")
		return
	}

	util.Default.Printf("📁 Selected %s\n", picked)
	if picked == cfg.RemotePath {
		return
	}

	confirm := promptui.Prompt{
		Label:     "Save as the profile's remote path",
		IsConfirm: true,
	}
	if _, err := confirm.Run(); err != nil {
		return
	}
	cfg.RemotePath = picked
	if err := config.Save(cfg); err != nil {
		util.Default.Printf("❌ Cannot update %s: %v\n", config.ConfigFileName, err)
		return
	}
	util.Default.Printf("✅ Updated %s\n", config.ConfigFileName)
}
