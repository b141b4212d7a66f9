package server

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"
)

// Handler executes the command of an exec request and returns its exit status.
type Handler interface {
	Exec(s *Session) int
}

type HandlerFunc func(s *Session) int

func (f HandlerFunc) Exec(s *Session) int {
	return f(s)
}

type Config struct {
	Addr string

	// Without a password or authorized keys any client is let in.
	Password       string
	AuthorizedKeys []ssh.PublicKey

	// Nil means an ephemeral key.
	HostKey ssh.Signer
}

type Server struct {
	handler Handler

	hostKey ssh.Signer
	srv     *gliderssh.Server
}

func NewServer(c Config, handler Handler) (*Server, error) {
	hostKey := c.HostKey

	if hostKey == nil {
		key, err := ReadHostKey("")

		if err != nil {
			return nil, fmt.Errorf("generate host key: %w", err)
		}

		hostKey = key
	}

	s := &Server{
		handler: handler,
		hostKey: hostKey,
	}

	s.srv = &gliderssh.Server{
		Addr:    c.Addr,
		Handler: s.handleSession,
	}

	if c.Password != "" {
		password := []byte(c.Password)

		s.srv.PasswordHandler = func(ctx gliderssh.Context, pass string) bool {
			if subtle.ConstantTimeCompare([]byte(pass), password) != 1 {
				slog.Debug("password rejected", "user", ctx.User(), "remote_addr", ctx.RemoteAddr())
				return false
			}

			return true
		}
	}

	if len(c.AuthorizedKeys) > 0 {
		keys := c.AuthorizedKeys

		s.srv.PublicKeyHandler = func(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
			for _, k := range keys {
				if gliderssh.KeysEqual(key, k) {
					return true
				}
			}

			slog.Debug("public key rejected", "user", ctx.User(), "remote_addr", ctx.RemoteAddr())
			return false
		}
	}

	s.srv.AddHostKey(hostKey)

	return s, nil
}

func (s *Server) HostKey() ssh.PublicKey {
	return s.hostKey.PublicKey()
}

func (s *Server) ListenAndServe() error {
	slog.Info("listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Serve(l net.Listener) error {
	return s.srv.Serve(l)
}

func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	ctx := sess.Context()

	session := &Session{
		ID:   ctx.SessionID(),
		User: sess.User(),

		Env: parseEnv(sess.Environ()),
		Cmd: sess.RawCommand(),

		Stdin:  sess,
		Stdout: sess,
		Stderr: sess.Stderr(),

		ctx: ctx,
	}

	if session.Cmd == "" {
		slog.Debug("reject shell", "session", session.ID, "user", session.User)

		fmt.Fprintln(sess.Stderr(), "interactive shells are not supported")
		sess.Exit(1)

		return
	}

	slog.Debug("exec", "session", session.ID, "user", session.User, "command", session.Cmd)

	code := s.handler.Exec(session)

	slog.Debug("exit", "session", session.ID, "status", code)

	// https://datatracker.ietf.org/doc/html/rfc4254#section-6.10
	sess.Exit(code)
}
