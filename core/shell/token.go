// Package shell turns a command line into the flat token sequence executed by
// the launch package.
//
// Lines are parsed with the POSIX shell grammar, but only the small subset of
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html
// needed for job control is recognized: words, the redirection operators
// < and >, pipes and the trailing & background operator. There is no
// expansion of any kind.
package shell

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Kind tags a token.
type Kind int

const (
	Word Kind = iota
	Input
	Output
	Pipe
	Background
)

func (k Kind) String() string {
	switch k {
	case Word:
		return "word"
	case Input:
		return "<"
	case Output:
		return ">"
	case Pipe:
		return "|"
	case Background:
		return "&"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Token is a word or an operator.
type Token struct {
	Kind Kind
	// Text holds the unquoted word, empty for operators.
	Text string
}

func (t Token) String() string {
	if t.Kind == Word {
		return t.Text
	}
	return t.Kind.String()
}

// W is shorthand for a word token.
func W(text string) Token {
	return Token{Kind: Word, Text: text}
}

// Op is shorthand for an operator token.
func Op(k Kind) Token {
	return Token{Kind: k}
}

// ErrUnsupported is returned for shell syntax outside the recognized subset,
// such as expansions, lists and here-documents.
var ErrUnsupported = errors.New("unsupported syntax")

func unsupported(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// Tokenize splits a line into tokens. Operators need no surrounding
// whitespace, so "a|b>c" is five tokens. Parse errors, including a line that
// ends inside quotes, are returned as syntax.ParseError values.
func Tokenize(line string) ([]Token, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	file, err := parser.Parse(strings.NewReader(line), "")
	var langErr syntax.LangError
	if errors.As(err, &langErr) {
		return nil, unsupported("%v", langErr)
	}
	if err != nil {
		return nil, err
	}

	switch len(file.Stmts) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, unsupported("multiple commands on one line")
	}

	stmt := file.Stmts[0]
	out, err := flattenStmt(nil, stmt)
	if err != nil {
		return nil, err
	}
	if stmt.Background {
		out = append(out, Op(Background))
	}
	return out, nil
}

func flattenStmt(out []Token, stmt *syntax.Stmt) ([]Token, error) {
	if stmt.Negated || stmt.Coprocess {
		return nil, unsupported("negated or coprocess command")
	}

	switch cmd := stmt.Cmd.(type) {
	case nil:
		// Redirections alone; SplitStages reports the missing command.
	case *syntax.CallExpr:
		if len(cmd.Assigns) > 0 {
			return nil, unsupported("variable assignment")
		}
		for _, word := range cmd.Args {
			text, err := wordText(word)
			if err != nil {
				return nil, err
			}
			out = append(out, W(text))
		}
	case *syntax.BinaryCmd:
		if cmd.Op != syntax.Pipe {
			return nil, unsupported("operator %s", cmd.Op)
		}
		if stmt.Background && (cmd.X.Background || cmd.Y.Background) {
			return nil, unsupported("nested background")
		}
		var err error
		if out, err = flattenStmt(out, cmd.X); err != nil {
			return nil, err
		}
		out = append(out, Op(Pipe))
		if out, err = flattenStmt(out, cmd.Y); err != nil {
			return nil, err
		}
	default:
		return nil, unsupported("compound command")
	}

	for _, redir := range stmt.Redirs {
		if redir.N != nil || redir.Hdoc != nil {
			return nil, unsupported("redirection %s", redir.Op)
		}
		var kind Kind
		switch redir.Op {
		case syntax.RdrIn:
			kind = Input
		case syntax.RdrOut:
			kind = Output
		default:
			return nil, unsupported("redirection %s", redir.Op)
		}
		text, err := wordText(redir.Word)
		if err != nil {
			return nil, err
		}
		out = append(out, Op(kind), W(text))
	}
	return out, nil
}

// wordText removes quoting from a word. Any expansion is rejected.
func wordText(word *syntax.Word) (string, error) {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch part := part.(type) {
		case *syntax.Lit:
			sb.WriteString(unescape(part.Value, false))
		case *syntax.SglQuoted:
			if part.Dollar {
				return "", unsupported("$'...' quoting")
			}
			sb.WriteString(part.Value)
		case *syntax.DblQuoted:
			if part.Dollar {
				return "", unsupported("$\"...\" quoting")
			}
			for _, inner := range part.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", unsupported("expansion in %q", printWord(word))
				}
				sb.WriteString(unescape(lit.Value, true))
			}
		default:
			return "", unsupported("expansion in %q", printWord(word))
		}
	}
	return sb.String(), nil
}

// unescape drops backslashes the way the shell does: every unquoted
// backslash escapes the next character, inside double quotes only $ ` " \
// and newline are escapable.
func unescape(s string, dquote bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			next := s[i+1]
			if !dquote || strings.IndexByte("$`\"\\\n", next) >= 0 {
				if next != '\n' {
					sb.WriteByte(next)
				}
				i++
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func printWord(word *syntax.Word) string {
	var sb strings.Builder
	if err := syntax.NewPrinter().Print(&sb, word); err != nil {
		return "?"
	}
	return sb.String()
}

// HasPipe reports whether the sequence contains a pipe operator.
func HasPipe(tokens []Token) bool {
	for _, t := range tokens {
		if t.Kind == Pipe {
			return true
		}
	}
	return false
}

// Words returns the text of every word token, in order.
func Words(tokens []Token) []string {
	var out []string
	for _, t := range tokens {
		if t.Kind == Word {
			out = append(out, t.Text)
		}
	}
	return out
}

// Join renders tokens back into a single line, used for messages and logs.
func Join(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}
