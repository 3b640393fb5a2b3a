package launch

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/josephlewis42/jsh/core/fd"
)

// Stage is one command of a pipeline with its resolved descriptors. Unset
// descriptors fall back to the launcher's standard streams.
type Stage struct {
	Argv   []string
	Stdin  *fd.Handle
	Stdout *fd.Handle
	// Foreground stages take the terminal before they exec when the
	// launcher has job control.
	Foreground bool
}

// Launcher starts stages as child processes.
type Launcher struct {
	// Self is the executable re-run as a stage helper for builtins and for
	// programs that can't be started directly.
	Self string
	// IsBuiltin reports whether a command name is a shell builtin.
	IsBuiltin func(name string) bool
	// Env returns the environment for children, os.Environ when nil.
	Env func() []string

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// JobControl enables terminal hand-off to foreground stages on TTY.
	JobControl bool
	TTY        int

	// OnStart, when set, is called with the pid of each started child while
	// the caller still holds the stage's descriptors.
	OnStart func(pid int, st Stage)

	Log *log.Logger
}

// NewLauncher creates a launcher over the process's standard streams that
// re-runs the current executable as its stage helper.
func NewLauncher(isBuiltin func(string) bool, logger *log.Logger) (*Launcher, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating shell executable: %w", err)
	}
	return &Launcher{
		Self:      self,
		IsBuiltin: isBuiltin,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		TTY:       -1,
		Log:       logger,
	}, nil
}

func (l *Launcher) env() []string {
	if l.Env != nil {
		return l.Env()
	}
	return os.Environ()
}

func (l *Launcher) logger() *log.Logger {
	if l.Log == nil {
		return log.New(io.Discard, "", 0)
	}
	return l.Log
}

func orDefault(f, def *os.File) *os.File {
	if f != nil {
		return f
	}
	return def
}

// Launch starts the stage in process group pgid, founding a new group led by
// the child when pgid is 0, and returns the child's pid.
//
// The child starts with its descriptors 0, 1 and 2 set to the stage's input,
// output and the launcher's stderr; every other descriptor the shell holds is
// close-on-exec. Signals the shell catches revert to their default
// disposition in the child. Launch doesn't close the stage's descriptors,
// the caller owns them.
func (l *Launcher) Launch(pgid int, st Stage) (int, error) {
	if len(st.Argv) == 0 {
		return 0, ErrMalformed
	}

	stdin := st.Stdin.FileOr(orDefault(l.Stdin, os.Stdin))
	stdout := st.Stdout.FileOr(orDefault(l.Stdout, os.Stdout))
	stderr := orDefault(l.Stderr, os.Stderr)
	files := []uintptr{stdin.Fd(), stdout.Fd(), stderr.Fd()}
	sys := &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}
	if l.JobControl && st.Foreground {
		// The child claims the terminal itself, before exec.
		sys.Foreground = true
		sys.Ctty = l.TTY
	}

	name := st.Argv[0]
	if l.IsBuiltin == nil || !l.IsBuiltin(name) {
		if path, err := exec.LookPath(name); err == nil {
			pid, err := syscall.ForkExec(path, st.Argv, &syscall.ProcAttr{
				Env:   l.env(),
				Files: files,
				Sys:   sys,
			})
			if err == nil {
				runtime.KeepAlive(stdin)
				runtime.KeepAlive(stdout)
				return l.started(pid, st), nil
			}
			l.logger().Printf("exec %s: %v, starting stage helper", path, err)
		}
	}

	// Builtins and failed lookups run in a copy of the shell, which either
	// runs the builtin or reports why the program couldn't be executed.
	argv := append([]string{l.Self}, st.Argv...)
	pid, err := syscall.ForkExec(l.Self, argv, &syscall.ProcAttr{
		Env:   append(l.env(), StageEnv+"=1"),
		Files: files,
		Sys:   sys,
	})
	runtime.KeepAlive(stdin)
	runtime.KeepAlive(stdout)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return l.started(pid, st), nil
}

func (l *Launcher) started(pid int, st Stage) int {
	if l.OnStart != nil {
		l.OnStart(pid, st)
	}
	return pid
}
