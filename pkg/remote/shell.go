package remote

import (
	"context"
	"fmt"
	"io"
)

// Shell executes commands on a remote host. A non-zero exit status is
// reported as a *CommandError.
type Shell interface {
	Run(ctx context.Context, command string) error
	Sudo(ctx context.Context, command string) error
}

// Cd returns a Shell that runs every command from within dir, including
// commands run through sudo.
func Cd(shell Shell, dir string) Shell {
	return &dirShell{
		shell: shell,
		dir:   dir,
	}
}

type dirShell struct {
	shell Shell
	dir   string
}

func (s *dirShell) Run(ctx context.Context, command string) error {
	return s.shell.Run(ctx, s.wrap(command))
}

func (s *dirShell) Sudo(ctx context.Context, command string) error {
	return s.shell.Sudo(ctx, s.wrap(command))
}

func (s *dirShell) wrap(command string) string {
	return "cd " + Quote(s.dir) + " && " + command
}

// DryRun returns a Shell that writes commands to w instead of running them.
// Sudo commands are rendered the way Client.Sudo hands them to sudo.
func DryRun(w io.Writer) Shell {
	return &dryShell{
		w: w,
	}
}

type dryShell struct {
	w io.Writer
}

func (s *dryShell) Run(ctx context.Context, command string) error {
	_, err := fmt.Fprintln(s.w, "+ "+command)
	return err
}

func (s *dryShell) Sudo(ctx context.Context, command string) error {
	_, err := fmt.Fprintln(s.w, "+ sudo sh -c "+Quote(command))
	return err
}
