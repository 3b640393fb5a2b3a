package main

import (
	"github.com/josephlewis42/jsh/cmd"
	"github.com/josephlewis42/jsh/commands"
	"github.com/josephlewis42/jsh/core/launch"
)

func main() {
	// Pipeline and background stages re-execute the shell to run builtins.
	if launch.IsStage() {
		launch.RunStage(commands.Registry{})
	}

	cmd.Execute()
}
