package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/josephlewis42/jsh/commands"
	"github.com/josephlewis42/jsh/core/config"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	exitCode int
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "jsh")
}

func loadConfig(logger *log.Logger) (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		logger.Printf("no configuration in %s, using defaults (run init to create one)", cfgPath)
		return config.Default(cfgPath), nil
	}

	return configuration, err
}

// openAppLog returns the configured application log, or a discarding
// writer if there is none.
func openAppLog(cfg *config.Configuration, logger *log.Logger) (io.Writer, func()) {
	if cfg.AppLog == "" {
		return io.Discard, func() {}
	}
	logFd, err := cfg.OpenAppLog()
	if err != nil {
		logger.Printf("couldn't open app log: %v", err)
		return io.Discard, func() {}
	}
	return logFd, func() { logFd.Close() }
}

// runShell runs an interactive shell and returns its exit code.
func runShell(cmd *cobra.Command, cfg *config.Configuration) (int, error) {
	stderrLogger := log.New(cmd.ErrOrStderr(), "[jsh] ", 0)
	appLog, closeLog := openAppLog(cfg, stderrLogger)
	defer closeLog()

	logger := log.New(appLog, "[jsh] ", log.LstdFlags)
	sh, err := commands.NewInteractiveShell(cfg, logger)
	if err != nil {
		return 1, err
	}
	defer sh.Close()

	logger.Printf("shell started, pid %d", os.Getpid())
	code := sh.Run()
	logger.Printf("shell exiting with status %d", code)
	return code, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jsh",
	Short: "Job control shell",
	Long:  `An interactive shell that runs commands and pipelines as jobs with redirection and job control.`,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(log.New(cmd.ErrOrStderr(), "[jsh] ", 0))
		if err != nil {
			return err
		}

		exitCode, err = runShell(cmd, cfg)
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "jsh: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config path")
}
