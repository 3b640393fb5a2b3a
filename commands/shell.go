package commands

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/jsh/core/config"
	"github.com/josephlewis42/jsh/core/jobs"
	"github.com/josephlewis42/jsh/core/launch"
	"github.com/josephlewis42/jsh/core/shell"
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// ErrNotInteractive is returned when the shell's input isn't a terminal.
var ErrNotInteractive = errors.New("shell can run only in interactive mode")

// ShellOptions configure a Shell.
type ShellOptions struct {
	Config *config.Configuration
	Logger *log.Logger

	// TTY is the terminal handed to foreground jobs, -1 to run without
	// terminal control.
	TTY int

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

type Shell struct {
	Config   *config.Configuration
	Jobs     *jobs.Table
	Exec     *launch.Executor
	Readline *readline.Instance

	stdin  *os.File
	stdout *os.File
	stderr *os.File
	log    *log.Logger

	// Caught job control signals, default again in children after exec.
	ignored chan os.Signal

	lastRet  int
	exitCode int

	// Set to true to quit the shell
	Quit bool
}

// NewInteractiveShell creates a shell on the process's terminal.
func NewInteractiveShell(cfg *config.Configuration, logger *log.Logger) (*Shell, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, ErrNotInteractive
	}
	if err := claimProcessGroup(); err != nil {
		return nil, fmt.Errorf("joining own process group: %w", err)
	}

	return NewShell(ShellOptions{
		Config: cfg,
		Logger: logger,
		TTY:    int(os.Stdin.Fd()),
	})
}

// claimProcessGroup moves the shell into a group of its own unless it
// leads its session.
func claimProcessGroup() error {
	pid := os.Getpid()
	if sid, err := unix.Getsid(0); err == nil && sid == pid {
		return nil
	}
	if unix.Getpgrp() == pid {
		return nil
	}
	return unix.Setpgid(0, 0)
}

func NewShell(opts ShellOptions) (*Shell, error) {
	if opts.Config == nil {
		return nil, errors.New("missing configuration")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	s := &Shell{
		Config: opts.Config,
		stdin:  orFile(opts.Stdin, os.Stdin),
		stdout: orFile(opts.Stdout, os.Stdout),
		stderr: orFile(opts.Stderr, os.Stderr),
		log:    opts.Logger,
	}

	s.Jobs = jobs.New(jobs.Options{
		TTY:           opts.TTY,
		Out:           s.stderr,
		Logger:        s.log,
		ShutdownGrace: s.Config.ShutdownGraceDuration(),
	})

	launcher, err := launch.NewLauncher(IsBuiltin, s.log)
	if err != nil {
		return nil, err
	}
	launcher.Stdin = s.stdin
	launcher.Stdout = s.stdout
	launcher.Stderr = s.stderr
	launcher.JobControl = opts.TTY >= 0
	launcher.TTY = opts.TTY
	launcher.OnStart = func(pid int, st launch.Stage) {
		s.log.Printf("started pid %d: %s", pid, strings.Join(st.Argv, " "))
	}

	s.Exec = &launch.Executor{
		Jobs:       s.Jobs,
		Launcher:   launcher,
		Builtins:   Registry{Shell: s},
		Messages:   s.stderr,
		OutputMode: s.Config.FileMode(),
		Log:        s.log,
	}

	s.ignored = make(chan os.Signal, 1)
	signal.Notify(s.ignored, syscall.SIGINT, syscall.SIGTSTP, syscall.SIGTTIN)

	if err := s.Jobs.Start(); err != nil {
		signal.Stop(s.ignored)
		return nil, err
	}
	return s, nil
}

func orFile(f, def *os.File) *os.File {
	if f != nil {
		return f
	}
	return def
}

// LastStatus returns the exit status of the last command line.
func (s *Shell) LastStatus() int {
	return s.lastRet
}

// Exit makes the shell quit with code once the current line finishes.
func (s *Shell) Exit(code int) {
	s.exitCode = code
	s.Quit = true
}

func (s *Shell) prompt() string {
	prompt := s.Config.Prompt
	if !s.Config.ColorPrompt || !isatty.IsTerminal(s.stdout.Fd()) {
		return prompt
	}
	if s.lastRet != 0 {
		return ColorBoldRed.Sprint(prompt)
	}
	return ColorBoldGreen.Sprint(prompt)
}

// Run reads and executes command lines until EOF or exit.
func (s *Shell) Run() int {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     s.Config.HistoryPath(),
		HistoryLimit:    s.Config.HistoryLimit,
		InterruptPrompt: "^C",
		Stdin:           readline.NewCancelableStdin(s.stdin),
		Stdout:          s.stdout,
		Stderr:          s.stderr,
	})
	if err != nil {
		fmt.Fprintf(s.stderr, "jsh: %v\n", err)
		return 1
	}
	s.Readline = rl
	defer rl.Close()

	for !s.Quit {
		s.Readline.SetPrompt(s.prompt())
		line, err := s.Readline.Readline()

		switch {
		case err == io.EOF:
			fmt.Fprintln(s.stdout)
			s.Exit(0)

		case err == readline.ErrInterrupt:
			// Interrupt clears line.
			continue

		case err != nil:
			s.log.Printf("Error readline: %v", err)
			continue

		case strings.TrimSpace(line) == "":
			continue // empty line

		default:
			s.RunLine(line)
		}
	}
	return s.exitCode
}

// RunLine executes one command line and reports jobs that finished in the
// meantime.
func (s *Shell) RunLine(line string) int {
	tokens, err := shell.Tokenize(line)
	if err != nil {
		fmt.Fprintf(s.stderr, "jsh: syntax error: %v\n", err)
		s.lastRet = 2
		return s.lastRet
	}

	s.lastRet = s.Exec.Eval(tokens)
	s.Jobs.PollFinished()
	return s.lastRet
}

// Close terminates remaining jobs and releases the shell's signals.
func (s *Shell) Close() {
	s.Jobs.Shutdown()
	signal.Stop(s.ignored)
}
