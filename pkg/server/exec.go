package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

var (
	_ Handler = &ShellHandler{}
)

// ShellHandler runs commands with a local shell, so a deploy can be
// rehearsed against this machine.
type ShellHandler struct {
	Shell string
	Dir   string
}

func (h *ShellHandler) Exec(s *Session) int {
	shell := h.Shell

	if shell == "" {
		shell = "/bin/sh"
	}

	ctx := s.Context()

	cmd := exec.CommandContext(ctx, shell, "-c", s.Cmd)
	cmd.Dir = h.Dir
	cmd.Env = os.Environ()

	for key, value := range s.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	cmd.WaitDelay = time.Second

	err := cmd.Run()

	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError

	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 124
	}

	slog.Warn("exec failed", "session", s.ID, "command", s.Cmd, "error", err)

	return 127
}
