package commands

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/josephlewis42/jsh/core/jobs"
	"golang.org/x/sys/unix"
)

// parseSignal accepts a signal number or a name with or without the SIG
// prefix.
func parseSignal(spec string) (syscall.Signal, error) {
	if n, err := strconv.Atoi(spec); err == nil {
		if n <= 0 || unix.SignalName(syscall.Signal(n)) == "" {
			return 0, fmt.Errorf("%s: invalid signal specification", spec)
		}
		return syscall.Signal(n), nil
	}

	name := strings.ToUpper(spec)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("%s: invalid signal specification", spec)
}

// expandSignalShorthand rewrites kill -SIG into kill -s SIG so the flag
// parser accepts it.
func expandSignalShorthand(args []string) []string {
	if len(args) < 2 || !strings.HasPrefix(args[1], "-") || strings.HasPrefix(args[1], "--") {
		return args
	}
	spec := args[1][1:]
	switch spec {
	case "", "s", "l", "h":
		return args
	}
	if _, err := parseSignal(spec); err != nil {
		return args
	}
	out := []string{args[0], "-s", spec}
	return append(out, args[2:]...)
}

// Kill sends a signal to jobs (%n) or processes.
func Kill(env *Env, args []string) int {
	cmd := &SimpleCommand{
		Use:   "kill [-s sigspec | -sigspec] pid | %job ... or kill -l",
		Short: "Send a signal to a job or process, SIGTERM by default.",
	}
	sigSpec := cmd.Flags().StringLong("signal", 's', "TERM", "signal to send")
	list := cmd.Flags().Bool('l', "list signal names")

	args = expandSignalShorthand(args)
	return cmd.Run(env, args, func() int {
		if *list {
			for i := 1; i < 65; i++ {
				if name := unix.SignalName(syscall.Signal(i)); name != "" {
					fmt.Fprintf(env.Stdout, "%2d) %s\n", i, name)
				}
			}
			return 0
		}

		sig, err := parseSignal(*sigSpec)
		if err != nil {
			fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
			return 1
		}

		targets := cmd.Flags().Args()
		if len(targets) == 0 {
			cmd.PrintHelp(env.Stderr)
			return 2
		}

		ret := 0
		for _, target := range targets {
			if err := killTarget(env, target, sig); err != nil {
				fmt.Fprintf(env.Stderr, "%s: %s: %v\n", args[0], target, err)
				ret = 1
			}
		}
		return ret
	})
}

func killTarget(env *Env, target string, sig syscall.Signal) error {
	if strings.HasPrefix(target, "%") {
		if env.Shell == nil {
			return fmt.Errorf("no job control")
		}
		id, err := parseJobSpec(target)
		if err != nil {
			return jobs.ErrNoSuchJob
		}
		return env.Shell.Jobs.Signal(id, sig)
	}

	pid, err := strconv.Atoi(target)
	if err != nil {
		return fmt.Errorf("arguments must be process or job IDs")
	}
	return syscall.Kill(pid, sig)
}

func init() {
	addBuiltin("kill", Kill)
}
