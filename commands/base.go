package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/josephlewis42/jsh/core/launch"
	getopt "github.com/pborman/getopt/v2"
)

// Env is what a builtin runs against.
type Env struct {
	launch.Stdio

	// Shell is the interactive shell, nil when the builtin runs as a
	// pipeline or background stage.
	Shell *Shell
}

// Builtin is a command run inside the shell rather than exec'd.
type Builtin interface {
	Main(env *Env, args []string) int
}

type BuiltinFunc func(env *Env, args []string) int

func (f BuiltinFunc) Main(env *Env, args []string) int {
	return f(env, args)
}

var _ Builtin = (BuiltinFunc)(nil)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]Builtin)

func addBuiltin(name string, b BuiltinFunc) {
	AllBuiltins[name] = b
}

// IsBuiltin reports whether name is a registered builtin.
func IsBuiltin(name string) bool {
	_, ok := AllBuiltins[name]
	return ok
}

// BuiltinNames returns the registered builtin names in order.
func BuiltinNames() []string {
	var out []string
	for name := range AllBuiltins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Registry runs builtins for the launcher.
type Registry struct {
	Shell *Shell
}

var _ launch.Builtins = Registry{}

// RunBuiltin implements launch.Builtins.
func (r Registry) RunBuiltin(argv []string, stdio launch.Stdio) (int, bool) {
	if len(argv) == 0 {
		return 0, false
	}
	b, ok := AllBuiltins[argv[0]]
	if !ok {
		return 0, false
	}
	return b.Main(&Env{Stdio: stdio, Shell: r.Shell}, argv), true
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback.
func (s *SimpleCommand) Run(env *Env, args []string, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(env.Stderr, "%s: %s\n\n", args[0], err)
		s.PrintHelp(env.Stderr)
		return 2
	}

	if *s.ShowHelp {
		s.PrintHelp(env.Stdout)
		return 0
	}

	return callback()
}

// requireShell reports a builtin that needs job control running as a stage.
func requireShell(env *Env, name string) bool {
	if env.Shell == nil {
		fmt.Fprintf(env.Stderr, "%s: no job control\n", name)
		return false
	}
	return true
}

var (
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
)
