package commands

import (
	"fmt"
	"os"
)

// Cd is the cd shell builtin, it changes the shell's working directory
// which later jobs inherit.
func Cd(env *Env, args []string) int {
	cmd := &SimpleCommand{
		Use:   "cd [dir]",
		Short: "Change the shell working directory, $HOME by default.",
	}

	return cmd.Run(env, args, func() int {
		dirs := cmd.Flags().Args()
		var dir string
		switch len(dirs) {
		case 0:
			dir = os.Getenv("HOME")
			if dir == "" {
				fmt.Fprintf(env.Stderr, "%s: HOME not set\n", args[0])
				return 1
			}
		case 1:
			dir = dirs[0]
		default:
			fmt.Fprintf(env.Stderr, "%s: too many arguments\n", args[0])
			return 1
		}

		if err := os.Chdir(dir); err != nil {
			fmt.Fprintf(env.Stderr, "%s: %v\n", args[0], err)
			return 1
		}
		return 0
	})
}

func init() {
	addBuiltin("cd", Cd)
}
