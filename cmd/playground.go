package cmd

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/jsh/core/config"
	"github.com/spf13/cobra"
)

// playgroundCmd runs the shell with a throwaway configuration
var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Run the shell with a fresh default configuration in a temporary directory.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		dir, err := os.MkdirTemp("", "playground")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		playgroundLogger := log.New(cmd.ErrOrStderr(), "[playground] ", 0)
		cfg, err := config.Initialize(dir, playgroundLogger)
		if err != nil {
			return err
		}
		cfg.Prompt = "playground" + cfg.Prompt

		if cfg.AppLog != "" {
			playgroundLogger.Printf("See logs with: tail -f %s\n", filepath.Join(dir, cfg.AppLog))
		}
		playgroundLogger.Println(strings.Repeat("=", 80))

		exitCode, err = runShell(cmd, cfg)
		return err
	},
}

func init() {
	rootCmd.AddCommand(playgroundCmd)
}
