package commands

import (
	"fmt"
)

// Help lists the builtins, or shows the help of one.
func Help(env *Env, args []string) int {
	cmd := &SimpleCommand{
		Use:   "help [name]",
		Short: "Display information about builtin commands.",
	}

	return cmd.Run(env, args, func() int {
		if names := cmd.Flags().Args(); len(names) > 0 {
			b, ok := AllBuiltins[names[0]]
			if !ok {
				fmt.Fprintf(env.Stderr, "%s: no help topics match %q\n", args[0], names[0])
				return 1
			}
			return b.Main(env, []string{names[0], "--help"})
		}

		w := env.Stdout
		fmt.Fprintln(w, "jsh, a job control shell")
		fmt.Fprintln(w, "These shell commands are defined internally.  Type `help' to see this list.")
		fmt.Fprintln(w, "Type `help name' to find out more about the function `name'.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Builtins:")
		for _, name := range BuiltinNames() {
			fmt.Fprintf(w, "  %s\n", name)
		}
		return 0
	})
}

func init() {
	addBuiltin("help", Help)
}
