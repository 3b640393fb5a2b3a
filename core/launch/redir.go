package launch

import (
	"errors"
	"os"

	"github.com/josephlewis42/jsh/core/fd"
	"github.com/josephlewis42/jsh/core/shell"
)

// DefaultOutputMode is the permission used for files created by >.
const DefaultOutputMode os.FileMode = 0664

var (
	// ErrMissingTarget is returned for a redirection operator with no path.
	ErrMissingTarget = errors.New("missing redirection target")
	// ErrMalformed is returned for a pipeline with an empty stage.
	ErrMalformed = errors.New("command line is not well formed")
)

// Resolve strips redirections from tokens, opening their targets into in and
// out, and returns the remaining words.
//
// A later redirection of the same direction replaces an earlier one, whose
// descriptor is closed before the new file is opened. Scanning stops at the
// first pipe or background operator. On error in and out still own whatever
// was opened so far and the caller remains responsible for closing them.
func Resolve(tokens []shell.Token, in, out *fd.Handle, mode os.FileMode) ([]string, error) {
	var argv []string
	pending := shell.Word

scan:
	for _, tok := range tokens {
		switch tok.Kind {
		case shell.Input, shell.Output:
			if pending != shell.Word {
				return nil, ErrMissingTarget
			}
			pending = tok.Kind

		case shell.Word:
			switch pending {
			case shell.Input:
				if err := in.Close(); err != nil {
					return nil, err
				}
				f, err := os.Open(tok.Text)
				if err != nil {
					return nil, err
				}
				in.Replace(f)
			case shell.Output:
				if err := out.Close(); err != nil {
					return nil, err
				}
				f, err := os.OpenFile(tok.Text, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
				if err != nil {
					return nil, err
				}
				out.Replace(f)
			default:
				argv = append(argv, tok.Text)
			}
			pending = shell.Word

		default:
			break scan
		}
	}

	if pending != shell.Word {
		return nil, ErrMissingTarget
	}
	return argv, nil
}

// commandWords counts the words of a stage that aren't redirection targets.
func commandWords(tokens []shell.Token) int {
	n := 0
	pending := false
	for _, tok := range tokens {
		switch tok.Kind {
		case shell.Input, shell.Output:
			pending = true
		case shell.Word:
			if !pending {
				n++
			}
			pending = false
		default:
			return n
		}
	}
	return n
}

// SplitStages cuts a token sequence at pipe operators. Every stage must name
// a command, so a leading, trailing or doubled pipe is ErrMalformed.
func SplitStages(tokens []shell.Token) ([][]shell.Token, error) {
	var (
		stages [][]shell.Token
		start  int
	)
	for i := 0; i <= len(tokens); i++ {
		if i < len(tokens) && tokens[i].Kind != shell.Pipe {
			continue
		}
		stage := tokens[start:i]
		if commandWords(stage) == 0 {
			return nil, ErrMalformed
		}
		stages = append(stages, stage)
		start = i + 1
	}
	return stages, nil
}
