package deploy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janerist/deploy/pkg/model"
	"github.com/janerist/deploy/pkg/remote"
)

// fakeShell records commands and fails those containing a configured fragment.
type fakeShell struct {
	fail map[string]error

	calls []string
}

func (s *fakeShell) Run(ctx context.Context, command string) error {
	return s.call(command)
}

func (s *fakeShell) Sudo(ctx context.Context, command string) error {
	return s.call("sudo " + command)
}

func (s *fakeShell) call(command string) error {
	s.calls = append(s.calls, command)

	for match, err := range s.fail {
		if strings.Contains(command, match) {
			return err
		}
	}

	return nil
}

func (s *fakeShell) count(match string) int {
	n := 0

	for _, c := range s.calls {
		if strings.Contains(c, match) {
			n++
		}
	}

	return n
}

func exitStatus(command string, status int) error {
	return &remote.CommandError{Command: command, Status: status}
}

func newRunner(shell remote.Shell) *Runner {
	r := New(shell, model.Default())
	r.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	return r
}

func TestDeployFirstTime(t *testing.T) {
	shell := &fakeShell{
		fail: map[string]error{"test -d": exitStatus("test -d", 1)},
	}

	require.NoError(t, newRunner(shell).Deploy(context.Background()))

	assert.Equal(t, []string{
		"test -d '/home/janerist/apps/achtung5'",
		"git clone 'http://github.com/janerist/achtung5.git' '/home/janerist/apps/achtung5'",
		"cd '/home/janerist/apps/achtung5' && npm install",
		"cd '/home/janerist/apps/achtung5' && npm test",
		"sudo supervisorctl restart 'achtung5'",
	}, shell.calls)

	assert.Equal(t, 1, shell.count("git clone"))
	assert.Equal(t, 0, shell.count("git pull"))
}

func TestDeployExisting(t *testing.T) {
	shell := &fakeShell{}

	require.NoError(t, newRunner(shell).Deploy(context.Background()))

	assert.Equal(t, []string{
		"test -d '/home/janerist/apps/achtung5'",
		"cd '/home/janerist/apps/achtung5' && git pull",
		"cd '/home/janerist/apps/achtung5' && npm install",
		"cd '/home/janerist/apps/achtung5' && npm test",
		"sudo supervisorctl restart 'achtung5'",
	}, shell.calls)

	assert.Equal(t, 0, shell.count("git clone"))
	assert.Equal(t, 1, shell.count("supervisorctl restart"))
}

func TestDeployInstallFails(t *testing.T) {
	shell := &fakeShell{
		fail: map[string]error{"npm install": exitStatus("npm install", 1)},
	}

	err := newRunner(shell).Deploy(context.Background())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepInstall, stepErr.Step)
	assert.Equal(t, 1, remote.ExitStatus(err))

	assert.Equal(t, 0, shell.count("npm test"))
	assert.Equal(t, 0, shell.count("supervisorctl"))
}

func TestDeployTestFails(t *testing.T) {
	shell := &fakeShell{
		fail: map[string]error{"npm test": exitStatus("npm test", 1)},
	}

	err := newRunner(shell).Deploy(context.Background())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepTest, stepErr.Step)

	assert.Equal(t, 1, shell.count("npm install"))
	assert.Equal(t, 0, shell.count("supervisorctl"))
}

func TestDeployCloneFails(t *testing.T) {
	shell := &fakeShell{
		fail: map[string]error{
			"test -d":   exitStatus("test -d", 1),
			"git clone": exitStatus("git clone", 128),
		},
	}

	err := newRunner(shell).Deploy(context.Background())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepClone, stepErr.Step)
	assert.Equal(t, 128, remote.ExitStatus(err))

	assert.Equal(t, 2, len(shell.calls))
}

func TestDeployPullFails(t *testing.T) {
	shell := &fakeShell{
		fail: map[string]error{"git pull": exitStatus("git pull", 1)},
	}

	err := newRunner(shell).Deploy(context.Background())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepPull, stepErr.Step)

	assert.Equal(t, 0, shell.count("npm"))
	assert.Equal(t, 0, shell.count("supervisorctl"))
}

func TestDeployRestartFails(t *testing.T) {
	shell := &fakeShell{
		fail: map[string]error{"supervisorctl": exitStatus("supervisorctl", 7)},
	}

	err := newRunner(shell).Deploy(context.Background())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepRestart, stepErr.Step)

	assert.Equal(t, 1, shell.count("supervisorctl restart"))
}

func TestExistsTransportError(t *testing.T) {
	shell := &fakeShell{
		fail: map[string]error{"test -d": errors.New("connection lost")},
	}

	r := newRunner(shell)

	_, err := r.Exists(context.Background())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepCheck, stepErr.Step)

	err = r.Sync(context.Background())
	assert.ErrorContains(t, err, "connection lost")
	assert.Equal(t, 0, shell.count("git"))
}

func TestSyncFirstTime(t *testing.T) {
	shell := &fakeShell{
		fail: map[string]error{"test -d": exitStatus("test -d", 1)},
	}

	require.NoError(t, newRunner(shell).Sync(context.Background()))

	assert.Equal(t, 1, shell.count("git clone"))
	assert.Equal(t, 0, shell.count("npm"))
	assert.Equal(t, 0, shell.count("supervisorctl"))
}

func TestSyncExisting(t *testing.T) {
	shell := &fakeShell{}

	require.NoError(t, newRunner(shell).Sync(context.Background()))

	assert.Equal(t, []string{
		"test -d '/home/janerist/apps/achtung5'",
		"cd '/home/janerist/apps/achtung5' && git pull",
	}, shell.calls)
}

func TestRestart(t *testing.T) {
	shell := &fakeShell{}

	require.NoError(t, newRunner(shell).Restart(context.Background()))

	assert.Equal(t, []string{"sudo supervisorctl restart 'achtung5'"}, shell.calls)
}

func TestDeployDryRun(t *testing.T) {
	shell := &fakeShell{}

	var out bytes.Buffer

	r := newRunner(shell)
	r.DryRun = &out

	require.NoError(t, r.Deploy(context.Background()))

	assert.Equal(t, []string{"test -d '/home/janerist/apps/achtung5'"}, shell.calls)

	assert.Equal(t, strings.Join([]string{
		"+ cd '/home/janerist/apps/achtung5' && git pull",
		"+ cd '/home/janerist/apps/achtung5' && npm install",
		"+ cd '/home/janerist/apps/achtung5' && npm test",
		`+ sudo sh -c 'supervisorctl restart '"'"'achtung5'"'"''`,
	}, "\n")+"\n", out.String())
}

func TestStepError(t *testing.T) {
	inner := exitStatus("npm test", 1)
	err := &StepError{Step: StepTest, Err: inner}

	assert.Equal(t, `test: command "npm test" exited with status 1`, err.Error())
	assert.ErrorIs(t, err, inner)
}
