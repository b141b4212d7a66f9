package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/janerist/deploy/pkg/model"
)

var (
	_ Shell = &Client{}
)

// Client runs commands on a single remote host. All commands share one SSH
// connection; each one gets its own session channel.
type Client struct {
	Stdout io.Writer
	Stderr io.Writer

	host         string
	sudoPassword string

	conn  *ssh.Client
	agent io.Closer
}

func Dial(ctx context.Context, c model.Config) (*Client, error) {
	auth, agent, err := authMethods(c.SSH)

	if err != nil {
		return nil, err
	}

	hostKeys, err := hostKeyCallback(c.SSH)

	if err != nil {
		closeAgent(agent)
		return nil, err
	}

	config := &ssh.ClientConfig{
		User: c.User,
		Auth: auth,

		HostKeyCallback: hostKeys,

		Timeout: c.SSH.Timeout,
	}

	addr := c.Address()

	dialer := &net.Dialer{
		Timeout: c.SSH.Timeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)

	if err != nil {
		closeAgent(agent)
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if c.SSH.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.SSH.Timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)

	if err != nil {
		conn.Close()
		closeAgent(agent)

		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}

	conn.SetDeadline(time.Time{})

	slog.Debug("connected", "host", addr, "user", c.User, "server_version", string(sshConn.ServerVersion()))

	return &Client{
		Stdout: os.Stdout,
		Stderr: os.Stderr,

		host:         addr,
		sudoPassword: c.SSH.SudoPassword,

		conn:  ssh.NewClient(sshConn, chans, reqs),
		agent: agent,
	}, nil
}

func (c *Client) Run(ctx context.Context, command string) error {
	return c.run(ctx, command, nil)
}

// Sudo runs command through sudo. Without a sudo password sudo must not
// prompt (-n); with one, the password is written to sudo's stdin.
func (c *Client) Sudo(ctx context.Context, command string) error {
	if c.sudoPassword == "" {
		return c.run(ctx, "sudo -n sh -c "+Quote(command), nil)
	}

	return c.run(ctx, "sudo -S -p '' sh -c "+Quote(command), strings.NewReader(c.sudoPassword+"\n"))
}

func (c *Client) Close() error {
	closeAgent(c.agent)
	return c.conn.Close()
}

func (c *Client) run(ctx context.Context, command string, stdin io.Reader) error {
	slog.Debug("run", "host", c.host, "command", command)

	session, err := c.conn.NewSession()

	if err != nil {
		return fmt.Errorf("open session on %s: %w", c.host, err)
	}

	defer session.Close()

	var stderr bytes.Buffer

	if stdin != nil {
		session.Stdin = stdin
	}

	session.Stdout = c.Stdout
	session.Stderr = io.MultiWriter(c.Stderr, &stderr)

	if err := session.Start(command); err != nil {
		return fmt.Errorf("start %q: %w", command, err)
	}

	done := make(chan error, 1)

	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGTERM)
		session.Close()

		return ctx.Err()

	case err = <-done:
	}

	if err == nil {
		return nil
	}

	var exitErr *ssh.ExitError

	if errors.As(err, &exitErr) {
		return &CommandError{
			Command: command,
			Status:  exitErr.ExitStatus(),
			Stderr:  strings.TrimSpace(stderr.String()),
		}
	}

	return fmt.Errorf("run %q: %w", command, err)
}

func closeAgent(c io.Closer) {
	if c != nil {
		c.Close()
	}
}
