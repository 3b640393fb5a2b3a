package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/josephlewis42/jsh/core/config"
	"github.com/spf13/cobra"
)

var initForce bool

// initCmd creates the directory named by --config (the user config dir by
// default) and writes the default config.yaml into it. An existing file is
// kept unless --force is set.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the shell configuration in the --config directory.",
	Long: `Create the --config directory if it's missing and write the default
config.yaml into it. An existing config.yaml is left alone unless --force is
given, in which case it's replaced with the defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		logger := log.New(cmd.ErrOrStderr(), "", 0)

		if initForce {
			old := filepath.Join(cfgPath, config.ConfigurationName)
			if err := os.Remove(old); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("removing old configuration: %w", err)
			}
		}

		cfg, err := config.Initialize(cfgPath, logger)
		if err != nil {
			return err
		}
		logger.Printf("configuration ready in %s", cfg.Dir())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "replace an existing config.yaml with the defaults")
	rootCmd.AddCommand(initCmd)
}
