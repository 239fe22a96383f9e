package cmd

import (
	"os"
	"os/exec"

	"remote-sync/internal/config"
	"remote-sync/internal/tools"
	"remote-sync/internal/util"

	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ssh key pair for the profile",
	Long: `Runs ssh-keygen interactively to produce an ed25519 key pair. When a
profile exists its private_key path is used as the output file, otherwise
ssh-keygen's own default applies.`,
	Run: func(cmd *cobra.Command, args []string) {
		info := tools.NewResolver().Resolve(tools.Keygen)
		if !info.Available {
			util.Default.Println("❌ ssh-keygen not found on PATH")
			return
		}

		keygenArgs := []string{"-t", "ed25519"}
		if config.ConfigExists() {
			if cfg, err := config.LoadConfig(); err == nil && cfg.PrivateKey != "" {
				keygenArgs = append(keygenArgs, "-f", cfg.PrivateKey)
			}
		}

		run := exec.CommandContext(cmd.Context(), info.Path, keygenArgs...)
		run.Stdin = os.Stdin
		run.Stdout = os.Stdout
		run.Stderr = os.Stderr
		if err := run.Run(); err != nil {
			util.Default.Printf("❌ ssh-keygen failed: %v\n", err)
			return
		}
		util.Default.Println("✅ Key pair generated")
	},
}
