package server

import (
	"context"
	"io"
	"strings"
)

// Session is a single exec request on an SSH connection.
type Session struct {
	ID   string
	User string

	Env map[string]string
	Cmd string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ctx context.Context
}

// Context is cancelled when the client goes away.
func (s *Session) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}

	return s.ctx
}

func parseEnv(environ []string) map[string]string {
	env := make(map[string]string, len(environ))

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")

		if !ok || key == "" {
			continue
		}

		env[key] = value
	}

	return env
}
