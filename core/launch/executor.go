// Package launch turns token sequences into running process groups.
package launch

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/josephlewis42/jsh/core/fd"
	"github.com/josephlewis42/jsh/core/jobs"
	"github.com/josephlewis42/jsh/core/shell"
)

// Executor runs single commands and pipelines as jobs.
type Executor struct {
	Jobs     *jobs.Table
	Launcher *Launcher
	Builtins Builtins

	// Messages receives errors and background job notices, the launcher's
	// stderr when nil.
	Messages io.Writer
	// OutputMode is the permission of files created by >.
	OutputMode os.FileMode

	Log *log.Logger
}

func (x *Executor) messages() io.Writer {
	if x.Messages != nil {
		return x.Messages
	}
	return orDefault(x.Launcher.Stderr, os.Stderr)
}

func (x *Executor) mode() os.FileMode {
	if x.OutputMode == 0 {
		return DefaultOutputMode
	}
	return x.OutputMode
}

func (x *Executor) report(err error) {
	fmt.Fprintf(x.messages(), "jsh: %v\n", err)
	if x.Log != nil {
		x.Log.Printf("error: %v", err)
	}
}

func (x *Executor) announce(id int, command string) {
	fmt.Fprintf(x.messages(), "[%d] running '%s'\n", id, command)
}

// Eval runs a tokenized command line. A trailing & runs it in the
// background.
func (x *Executor) Eval(tokens []shell.Token) int {
	bg := false
	if n := len(tokens); n > 0 && tokens[n-1].Kind == shell.Background {
		tokens = tokens[:n-1]
		bg = true
	}
	if len(tokens) == 0 {
		return 0
	}

	if shell.HasPipe(tokens) {
		return x.RunPipeline(tokens, bg)
	}
	return x.RunJob(tokens, bg)
}

// RunJob runs a command without pipes.
//
// Foreground builtins run inside the shell with the redirected streams. Any
// other command becomes a single process job in its own process group, which
// is waited for in the foreground or announced in the background.
func (x *Executor) RunJob(tokens []shell.Token, bg bool) int {
	var in, out fd.Handle
	defer in.Close()
	defer out.Close()

	argv, err := Resolve(tokens, &in, &out, x.mode())
	if err != nil {
		x.report(err)
		return 1
	}
	if len(argv) == 0 {
		return 0
	}

	if !bg && x.Builtins != nil {
		stdio := Stdio{
			Stdin:  in.FileOr(orDefault(x.Launcher.Stdin, os.Stdin)),
			Stdout: out.FileOr(orDefault(x.Launcher.Stdout, os.Stdout)),
			Stderr: orDefault(x.Launcher.Stderr, os.Stderr),
		}
		if code, ok := x.Builtins.RunBuiltin(argv, stdio); ok {
			return code
		}
	}

	mask := x.Jobs.Block()
	defer mask.Restore()

	pid, err := x.Launcher.Launch(0, Stage{Argv: argv, Stdin: &in, Stdout: &out, Foreground: !bg})
	if err != nil {
		x.report(err)
		return 1
	}
	in.Close()
	out.Close()

	id := mask.Register(pid, bg)
	mask.AddProcess(id, pid, argv)

	if !bg {
		return mask.WaitForeground(id)
	}
	x.announce(id, mask.Command(id))
	return 0
}

// RunPipeline runs a command containing pipes as one job whose processes
// share the process group of the first stage.
//
// A malformed command line is rejected before anything starts. If a stage
// fails to start after earlier stages are running, the whole group is killed
// and collected before the error is reported.
func (x *Executor) RunPipeline(tokens []shell.Token, bg bool) int {
	stages, err := SplitStages(tokens)
	if err != nil {
		x.report(err)
		return 1
	}

	mask := x.Jobs.Block()
	defer mask.Restore()

	// input feeds the stage being launched, output is its pipe to the next
	// stage and next is that pipe's read end, the following stage's input.
	var input, output, next fd.Handle
	defer input.Close()
	defer output.Close()
	defer next.Close()

	pgid := 0
	id := -1
	abort := func(err error) int {
		if id >= 0 {
			mask.Discard(id)
		}
		x.report(err)
		return 1
	}

	for i, stage := range stages {
		if i < len(stages)-1 {
			r, w, err := fd.Pipe()
			if err != nil {
				return abort(err)
			}
			next, output = r, w
		}

		argv, err := Resolve(stage, &input, &output, x.mode())
		if err != nil {
			return abort(err)
		}

		pid, err := x.Launcher.Launch(pgid, Stage{Argv: argv, Stdin: &input, Stdout: &output, Foreground: !bg})
		if err != nil {
			return abort(err)
		}
		if pgid == 0 {
			pgid = pid
			id = mask.Register(pgid, bg)
		}
		mask.AddProcess(id, pid, argv)

		// Both ends now belong to the child.
		input.Close()
		output.Close()
		input.Replace(next.Release())
	}

	if !bg {
		return mask.WaitForeground(id)
	}
	x.announce(id, mask.Command(id))
	return 0
}
