package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned for blank and comment-only lines.
var ErrEmpty = errors.New("empty command")

// Command is one parsed ingestion line.
type Command struct {
	Name string   // "NODE", "EDGE", ... always upper case
	Args [][]byte // arguments with quotes removed
}

// Arg returns argument i as a string, or "" if absent.
func (c *Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return string(c.Args[i])
}

// Parse splits a raw line into a Command.
//
// Arguments are separated by spaces or tabs. An argument wrapped in double
// quotes may contain spaces, '#' and the escapes \" and \\. An unquoted '#'
// starts a comment that runs to the end of the line.
func Parse(raw string) (*Command, error) {
	parts, err := split(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrEmpty
	}

	cmd := &Command{
		Name: strings.ToUpper(string(parts[0])),
		Args: make([][]byte, 0, len(parts)-1),
	}
	cmd.Args = append(cmd.Args, parts[1:]...)
	return cmd, nil
}

func split(line string) ([][]byte, error) {
	var (
		parts   [][]byte
		cur     []byte
		inArg   bool
		quoted  bool
		escaped bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			cur = append(cur, c)
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case quoted && c == '"':
			quoted = false
		case quoted:
			cur = append(cur, c)
		case c == '"':
			quoted, inArg = true, true
			if cur == nil {
				cur = []byte{}
			}
		case c == '#':
			i = len(line)
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			if inArg {
				parts = append(parts, cur)
				cur, inArg = nil, false
			}
		default:
			cur = append(cur, c)
			inArg = true
		}
	}
	if quoted || escaped {
		return nil, fmt.Errorf("unterminated quoted argument in %q", line)
	}
	if inArg {
		parts = append(parts, cur)
	}
	return parts, nil
}
