// Package servertest runs an in-process SSH host for tests.
package servertest

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/janerist/deploy/pkg/model"
	"github.com/janerist/deploy/pkg/server"
)

type Host struct {
	*server.Server

	Host string
	Port int

	listener net.Listener
	done     chan struct{}
}

// Start serves h on a loopback port until the test ends.
func Start(tb testing.TB, c server.Config, handler server.Handler) *Host {
	tb.Helper()

	s, err := server.NewServer(c, handler)

	if err != nil {
		tb.Fatalf("servertest: %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")

	if err != nil {
		tb.Fatalf("servertest: listen: %v", err)
	}

	addr := l.Addr().(*net.TCPAddr)

	h := &Host{
		Server: s,

		Host: addr.IP.String(),
		Port: addr.Port,

		listener: l,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		if err := s.Serve(l); err != nil && !errors.Is(err, gliderssh.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			tb.Logf("servertest: serve: %v", err)
		}
	}()

	tb.Cleanup(func() {
		h.Close()
		<-h.done
	})

	return h
}

// Close stops accepting connections and shuts the server down. The listener
// is closed here as well since Serve may not have picked it up yet.
func (h *Host) Close() error {
	err := h.Server.Close()

	if lerr := h.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) {
		err = errors.Join(err, lerr)
	}

	return err
}

// Config returns the default deploy config pointed at this host.
func (h *Host) Config() model.Config {
	c := model.Default()

	c.Host = h.Host
	c.Port = h.Port
	c.User = "deploy"

	c.SSH.Insecure = true
	c.SSH.Timeout = 5 * time.Second

	return c
}

// KnownHostsLine renders the host key the way ssh writes it to known_hosts.
func (h *Host) KnownHostsLine() string {
	addr := net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
	return knownhosts.Line([]string{knownhosts.Normalize(addr)}, h.HostKey())
}

// Script is a Handler that records every command and answers with a fixed
// exit status for commands containing a configured fragment. Everything
// else exits 0.
type Script struct {
	mu sync.Mutex

	rules    []rule
	commands []string
}

type rule struct {
	match  string
	status int
	stderr string
}

var (
	_ server.Handler = &Script{}
)

// Fail makes commands containing match exit with status, writing stderr.
func (s *Script) Fail(match string, status int, stderr string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = append(s.rules, rule{match, status, stderr})
	return s
}

func (s *Script) Exec(sess *server.Session) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, sess.Cmd)

	for _, r := range s.rules {
		if !strings.Contains(sess.Cmd, r.match) {
			continue
		}

		if r.stderr != "" {
			fmt.Fprintln(sess.Stderr, r.stderr)
		}

		return r.status
	}

	return 0
}

func (s *Script) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.commands...)
}

// Count reports how many recorded commands contain match.
func (s *Script) Count(match string) int {
	n := 0

	for _, cmd := range s.Commands() {
		if strings.Contains(cmd, match) {
			n++
		}
	}

	return n
}
