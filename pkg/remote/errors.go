package remote

import (
	"errors"
	"fmt"
	"strings"
)

// CommandError reports a remote command that ran but exited non-zero.
type CommandError struct {
	Command string
	Status  int
	Stderr  string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.Status)

	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}

	return msg
}

// ExitStatus returns the remote exit status carried by err, or -1 if err is
// not a command failure.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}

	var cmdErr *CommandError

	if errors.As(err, &cmdErr) {
		return cmdErr.Status
	}

	return -1
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)

	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}

	return s
}
