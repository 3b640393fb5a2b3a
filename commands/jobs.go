package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephlewis42/jsh/core/jobs"
)

// latestJob selects the most recent background job.
const latestJob = -1

// parseJobSpec accepts %n or n.
func parseJobSpec(spec string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(spec, "%"))
	if err != nil || n <= jobs.Foreground {
		return 0, fmt.Errorf("%s: %w", spec, jobs.ErrNoSuchJob)
	}
	return n, nil
}

func joinInts(values []int) string {
	var out []string
	for _, v := range values {
		out = append(out, strconv.Itoa(v))
	}
	return strings.Join(out, ",")
}

// ListJobs is the jobs builtin. Finished jobs are forgotten once listed.
func ListJobs(env *Env, args []string) int {
	cmd := &SimpleCommand{
		Use:   "jobs [-l]",
		Short: "Display status of jobs.",
	}
	long := cmd.Flags().Bool('l', "list process ids as well")

	return cmd.Run(env, args, func() int {
		if !requireShell(env, args[0]) {
			return 1
		}
		table := env.Shell.Jobs

		if !*long {
			table.List(env.Stdout, jobs.All)
			return 0
		}

		for _, info := range table.Jobs() {
			fmt.Fprintf(env.Stdout, "[%d] pgid=%d pids=%s %s '%s'\n",
				info.ID, info.Pgid, joinInts(info.Pids), info.State, info.Command)
		}
		// Report and drop whatever finished.
		table.List(env.Stderr, jobs.Finished)
		return 0
	})
}

func resumeJob(env *Env, args []string, bg bool) int {
	cmd := &SimpleCommand{
		Use: fmt.Sprintf("%s [%%n]", args[0]),
	}
	if bg {
		cmd.Short = "Continue a suspended job in the background."
	} else {
		cmd.Short = "Move a job to the foreground and wait for it."
	}

	return cmd.Run(env, args, func() int {
		if !requireShell(env, args[0]) {
			return 1
		}

		id := latestJob
		switch specs := cmd.Flags().Args(); len(specs) {
		case 0:
		case 1:
			var err error
			if id, err = parseJobSpec(specs[0]); err != nil {
				fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
				return 1
			}
		default:
			fmt.Fprintf(env.Stderr, "%s: too many arguments\n", args[0])
			return 1
		}

		code, err := env.Shell.Jobs.Resume(id, bg)
		switch {
		case errors.Is(err, jobs.ErrNoSuchJob) && id == latestJob:
			fmt.Fprintf(env.Stderr, "%s: current: no such job\n", args[0])
		case err != nil:
			fmt.Fprintf(env.Stderr, "%s: %%%d: %v\n", args[0], id, err)
		}
		return code
	})
}

// Fg resumes a job in the foreground.
func Fg(env *Env, args []string) int {
	return resumeJob(env, args, false)
}

// Bg resumes a job in the background.
func Bg(env *Env, args []string) int {
	return resumeJob(env, args, true)
}

func init() {
	addBuiltin("jobs", ListJobs)
	addBuiltin("fg", Fg)
	addBuiltin("bg", Bg)
}
