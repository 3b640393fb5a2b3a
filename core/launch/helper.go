package launch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
)

// StageEnv marks a re-executed shell as a stage helper.
const StageEnv = "JSH_STAGE"

// Exit codes of a stage whose program couldn't be run.
const (
	ExitNotExecutable = 126
	ExitNotFound      = 127
)

// Stdio holds the standard streams of a builtin.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Builtins runs builtin commands in the calling process.
type Builtins interface {
	// RunBuiltin runs argv if argv[0] names a builtin and reports whether it
	// did so.
	RunBuiltin(argv []string, stdio Stdio) (code int, ok bool)
}

// IsStage reports whether this process was started as a stage helper.
func IsStage() bool {
	return os.Getenv(StageEnv) == "1"
}

// RunStage is the child side of a stage started through the helper: it runs
// the builtin named by os.Args[1] or replaces the process with the program.
// It never returns.
func RunStage(builtins Builtins) {
	os.Exit(runStage(os.Args[1:], builtins, os.Stderr))
}

func runStage(argv []string, builtins Builtins, stderr io.Writer) int {
	os.Unsetenv(StageEnv)
	if len(argv) == 0 {
		fmt.Fprintln(stderr, "jsh: empty stage")
		return 2
	}

	if builtins != nil {
		stdio := Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: stderr}
		if code, ok := builtins.RunBuiltin(argv, stdio); ok {
			return code
		}
	}

	err := execImage(argv)
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(stderr, "%s: command not found\n", argv[0])
		return ExitNotFound
	default:
		fmt.Fprintf(stderr, "%s: %v\n", argv[0], err)
		return ExitNotExecutable
	}
}

// execImage replaces the current process with argv. It only returns on
// failure, always with a non-nil error.
func execImage(argv []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		return err
	}
	return errors.New("exec returned without error")
}
