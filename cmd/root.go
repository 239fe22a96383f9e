package cmd

import (
	"context"
	"fmt"
	"os"

	"remote-sync/internal/config"
	"remote-sync/internal/history"
	"remote-sync/internal/util"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "remote-sync",
	Short: "Push-sync and browse remote hosts over ssh",
	Long: `A CLI tool for maintaining remote Unix hosts as sync targets over a
restricted ssh channel: one-way push synchronization (rsync with an scp
fallback), a remote file explorer backed by one-shot ssh commands, and an
interactive remote directory picker.`,
	Run: func(cmd *cobra.Command, args []string) {
		runRoot(cmd.Context())
	},
}

func runRoot(ctx context.Context) {
	if !config.ConfigExists() {
		util.Default.Println("Config file not found")
		util.Default.Println("USAGE:")
		util.Default.Println("Create a profile in this directory by running:")
		util.Default.Println("  remote-sync init")
		util.Default.Println("------------------------------")
		showRecentProfilesMenu(ctx)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		util.Default.Printf("❌ Configuration is invalid:\n%v\n", err)
		util.Default.Println("💡 Fix the profile or run 'remote-sync init' in an empty directory")
		return
	}
	rememberProfile()

	for {
		select {
		case <-ctx.Done():
			util.Default.Println("⏹ Cancelled")
			return
		default:
		}
		if !showMainMenu(ctx, cfg) {
			return
		}
	}
}

// showMainMenu returns false when the user chose to exit.
func showMainMenu(ctx context.Context, cfg *config.Profile) bool {
	const (
		itemPush   = "🚀 Push to remote"
		itemDryRun = "🔎 Dry-run push"
		itemBrowse = "📁 Browse remote directory"
		itemExec   = "💻 Run remote command"
		itemRuns   = "🧾 Recent runs"
		itemExit   = "❌ Exit"
	)

	prompt := promptui.Select{
		Label: fmt.Sprintf("remote-sync — %s (%s)", cfg.ProjectName, cfg.Target().Destination()),
		Items: []string{itemPush, itemDryRun, itemBrowse, itemExec, itemRuns, itemExit},
		Size:  8,
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return false
	}

	switch choice {
	case itemPush:
		_ = doPush(ctx, cfg, false)
	case itemDryRun:
		_ = doPush(ctx, cfg, true)
	case itemBrowse:
		doBrowse(ctx, cfg)
	case itemExec:
		commandPrompt := promptui.Prompt{Label: "Remote command"}
		if command, err := commandPrompt.Run(); err == nil && command != "" {
			doExec(ctx, cfg, command)
		}
	case itemRuns:
		showRecentRuns()
	case itemExit:
		return false
	}
	return true
}

func showRecentProfilesMenu(ctx context.Context) {
	store, err := history.Open(history.DefaultPath())
	if err != nil {
		return
	}
	defer store.Close()

	entries, err := store.RecentProfiles(10)
	if err != nil || len(entries) == 0 {
		return
	}

	items := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		items = append(items, e.Path)
	}
	items = append(items, "❌ Exit")

	prompt := promptui.Select{Label: "Recent profile directories", Items: items, Size: 10}
	_, choice, err := prompt.Run()
	if err != nil || choice == "❌ Exit" {
		return
	}
	if err := os.Chdir(choice); err != nil {
		util.Default.Printf("❌ Cannot enter %s: %v\n", choice, err)
		return
	}
	util.Default.Printf("📂 Switched to %s\n", choice)
	runRoot(ctx)
}

func showRecentRuns() {
	store, err := history.Open(history.DefaultPath())
	if err != nil {
		util.Default.Printf("❌ Cannot open history: %v\n", err)
		return
	}
	defer store.Close()

	runs, err := store.RecentRuns(10)
	if err != nil || len(runs) == 0 {
		util.Default.Println("No recorded runs yet")
		return
	}
	for _, r := range runs {
		mode := ""
		if r.DryRun {
			mode = " (dry run)"
		}
		util.Default.Printf("%s  %-9s %-10s%s %s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.Tool, mode, r.Project)
	}
}

// rememberProfile records the working directory as a recently used profile.
// Best-effort: history is a convenience, never a failure source.
func rememberProfile() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	store, err := history.Open(history.DefaultPath())
	if err != nil {
		return
	}
	defer store.Close()
	_ = store.RecordProfile(cwd)
}

// ExecuteContext runs the CLI with the given base context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(keygenCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter profile in the current directory",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.WriteTemplate(); err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		util.Default.Printf("✅ Wrote %s — edit it, then run 'remote-sync push'\n", config.ConfigFileName)
	},
}
