package remote

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/janerist/deploy/pkg/model"
)

// authMethods collects key file, ssh-agent and password auth, in that order.
// The returned closer releases the agent connection, if one was opened.
func authMethods(c model.SSHConfig) ([]ssh.AuthMethod, io.Closer, error) {
	var methods []ssh.AuthMethod
	var closer io.Closer

	if c.KeyFile != "" {
		signer, err := ReadPrivateKey(c.KeyFile, c.KeyPassphrase)

		if err != nil {
			return nil, nil, err
		}

		methods = append(methods, ssh.PublicKeys(signer))
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)

		if err != nil {
			slog.Debug("ssh agent unavailable", "socket", sock, "error", err)
		} else {
			closer = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}

	return methods, closer, nil
}

func hostKeyCallback(c model.SSHConfig) (ssh.HostKeyCallback, error) {
	if c.Insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	name := c.KnownHosts

	if name == "" {
		name = "~/.ssh/known_hosts"
	}

	callback, err := knownhosts.New(expandHome(name))

	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}

	return callback, nil
}

func ReadPrivateKey(name, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(expandHome(name))

	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(data)

	var missing *ssh.PassphraseMissingError

	if errors.As(err, &missing) {
		if passphrase == "" {
			return nil, fmt.Errorf("private key %s is encrypted: %w", name, err)
		}

		return ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}

	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", name, err)
	}

	return signer, nil
}

func expandHome(name string) string {
	if name != "~" && !strings.HasPrefix(name, "~/") {
		return name
	}

	home, err := os.UserHomeDir()

	if err != nil {
		return name
	}

	return filepath.Join(home, strings.TrimPrefix(name, "~"))
}
