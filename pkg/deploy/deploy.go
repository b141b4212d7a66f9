// Package deploy provisions the application checkout on the remote host and
// restarts it under supervisord.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/janerist/deploy/pkg/model"
	"github.com/janerist/deploy/pkg/remote"
)

const (
	StepCheck   = "check"
	StepClone   = "clone"
	StepPull    = "pull"
	StepInstall = "install"
	StepTest    = "test"
	StepRestart = "restart"
)

// StepError reports which step of a run failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner runs the deploy steps strictly in order over one Shell. The
// existence check is the only step allowed to fail; every other failure ends
// the run.
type Runner struct {
	Logger *slog.Logger

	// When set, mutating commands are written here instead of being run.
	// The existence check still runs against the host.
	DryRun io.Writer

	shell  remote.Shell
	config model.Config
}

func New(shell remote.Shell, c model.Config) *Runner {
	return &Runner{
		Logger: slog.Default(),

		shell:  shell,
		config: c,
	}
}

// Exists reports whether the install directory is present on the host.
func (r *Runner) Exists(ctx context.Context) (bool, error) {
	err := r.shell.Run(ctx, "test -d "+remote.Quote(r.config.Path))

	if err == nil {
		return true, nil
	}

	var cmdErr *remote.CommandError

	if errors.As(err, &cmdErr) {
		return false, nil
	}

	return false, &StepError{Step: StepCheck, Err: err}
}

// Sync clones the repository into the install directory, or pulls it when
// the directory already exists.
func (r *Runner) Sync(ctx context.Context) error {
	return r.sync(ctx, r.logger())
}

// Deploy syncs the checkout, installs dependencies, runs the tests and
// restarts the program. The restart is only issued after install and test
// both succeed.
func (r *Runner) Deploy(ctx context.Context) error {
	logger := r.logger()

	if err := r.sync(ctx, logger); err != nil {
		return err
	}

	app := remote.Cd(r.exec(), r.config.Path)

	logger.Info("installing dependencies", "command", r.config.Install)

	if err := app.Run(ctx, r.config.Install); err != nil {
		return &StepError{Step: StepInstall, Err: err}
	}

	logger.Info("running tests", "command", r.config.Test)

	if err := app.Run(ctx, r.config.Test); err != nil {
		return &StepError{Step: StepTest, Err: err}
	}

	if err := r.restart(ctx, logger); err != nil {
		return err
	}

	logger.Info("deployed", "program", r.config.Program)

	return nil
}

// Restart restarts the supervisord program. supervisorctl restart stops the
// program if it is running and starts it either way, so repeating it is safe.
func (r *Runner) Restart(ctx context.Context) error {
	return r.restart(ctx, r.logger())
}

func (r *Runner) sync(ctx context.Context, logger *slog.Logger) error {
	exists, err := r.Exists(ctx)

	if err != nil {
		return err
	}

	if !exists {
		logger.Info("cloning repository", "repository", r.config.Repository, "path", r.config.Path)

		cmd := "git clone " + remote.Quote(r.config.Repository) + " " + remote.Quote(r.config.Path)

		if err := r.exec().Run(ctx, cmd); err != nil {
			return &StepError{Step: StepClone, Err: err}
		}

		return nil
	}

	logger.Info("pulling changes", "path", r.config.Path)

	if err := remote.Cd(r.exec(), r.config.Path).Run(ctx, "git pull"); err != nil {
		return &StepError{Step: StepPull, Err: err}
	}

	return nil
}

func (r *Runner) restart(ctx context.Context, logger *slog.Logger) error {
	logger.Info("restarting program", "program", r.config.Program)

	if err := r.exec().Sudo(ctx, "supervisorctl restart "+remote.Quote(r.config.Program)); err != nil {
		return &StepError{Step: StepRestart, Err: err}
	}

	return nil
}

func (r *Runner) exec() remote.Shell {
	if r.DryRun != nil {
		return remote.DryRun(r.DryRun)
	}

	return r.shell
}

func (r *Runner) logger() *slog.Logger {
	logger := r.Logger

	if logger == nil {
		logger = slog.Default()
	}

	return logger.With("run", uuid.NewString(), "host", r.config.Host)
}
