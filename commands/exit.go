package commands

import (
	"fmt"
	"strconv"
)

// Exit quits the shell with the given status, or the last command's.
func Exit(env *Env, args []string) int {
	cmd := &SimpleCommand{
		Use:   fmt.Sprintf("%s [n]", args[0]),
		Short: "Exit the shell, terminating any remaining jobs.",
	}

	return cmd.Run(env, args, func() int {
		code := 0
		if env.Shell != nil {
			code = env.Shell.LastStatus()
		}

		switch rest := cmd.Flags().Args(); len(rest) {
		case 0:
		case 1:
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				fmt.Fprintf(env.Stderr, "%s: %s: numeric argument required\n", args[0], rest[0])
				return 2
			}
			code = n & 0xff
		default:
			fmt.Fprintf(env.Stderr, "%s: too many arguments\n", args[0])
			return 1
		}

		if env.Shell != nil {
			env.Shell.Exit(code)
		}
		return code
	})
}

func init() {
	addBuiltin("exit", Exit)
	addBuiltin("quit", Exit)
}
