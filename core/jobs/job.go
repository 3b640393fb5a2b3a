package jobs

import (
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
	"mvdan.cc/sh/v3/syntax"
)

type job struct {
	pgid  int
	procs []*process
	state State
	// tmodes holds the terminal modes saved when the job was suspended.
	tmodes *unix.Termios
}

func (j *job) add(pid int, argv []string) {
	j.procs = append(j.procs, &process{
		pid:   pid,
		argv:  append([]string(nil), argv...),
		state: Running,
	})
	j.state = Running
}

// refresh recomputes the job state from its members: running if any member
// runs, suspended if any is stopped, finished otherwise.
func (j *job) refresh() {
	stopped := false
	for _, p := range j.procs {
		switch p.state {
		case Running:
			j.state = Running
			return
		case Stopped:
			stopped = true
		}
	}
	if stopped {
		j.state = Stopped
	} else {
		j.state = Finished
	}
}

// last returns the process whose status is the job's status.
func (j *job) last() *process {
	if len(j.procs) == 0 {
		return nil
	}
	return j.procs[len(j.procs)-1]
}

func (j *job) exitCode() int {
	if p := j.last(); p != nil {
		return p.exitCode()
	}
	return 0
}

func (j *job) pids() []int {
	out := make([]int, len(j.procs))
	for i, p := range j.procs {
		out[i] = p.pid
	}
	return out
}

// command renders the job as a pipeline of quoted words.
func (j *job) command() string {
	stages := make([]string, len(j.procs))
	for i, p := range j.procs {
		stages[i] = quoteArgv(p.argv)
	}
	return strings.Join(stages, " | ")
}

func quoteArgv(argv []string) string {
	words := make([]string, len(argv))
	for i, arg := range argv {
		quoted, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			// Only non-printable input fails to quote in POSIX mode.
			quoted = arg
		}
		words[i] = quoted
	}
	return strings.Join(words, " ")
}

// describe renders a status line the way the shell reports job changes.
func (j *job) describe(id int) string {
	var b strings.Builder
	switch j.state {
	case Running:
		fmt.Fprintf(&b, "[%d] running '%s'", id, j.command())
	case Stopped:
		fmt.Fprintf(&b, "[%d] suspended '%s'", id, j.command())
	case Finished:
		p := j.last()
		if p != nil && p.status.Signaled() {
			fmt.Fprintf(&b, "[%d] killed '%s' by signal %d", id, j.command(), int(p.status.Signal()))
		} else {
			fmt.Fprintf(&b, "[%d] exited '%s', status=%d", id, j.command(), j.exitCode())
		}
	}
	return b.String()
}

// Info is a snapshot of one job.
type Info struct {
	ID      int
	Pgid    int
	Pids    []int
	State   State
	Command string
}

func (j *job) info(id int) Info {
	return Info{
		ID:      id,
		Pgid:    j.pgid,
		Pids:    j.pids(),
		State:   j.state,
		Command: j.command(),
	}
}

func (j *job) signal(sig syscall.Signal) error {
	return syscall.Kill(-j.pgid, sig)
}
