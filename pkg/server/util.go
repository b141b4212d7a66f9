package server

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"

	"golang.org/x/crypto/ssh"
)

// ReadHostKey loads a PEM private key. An empty name yields a fresh
// ed25519 key that lives as long as the process.
func ReadHostKey(name string) (ssh.Signer, error) {
	if name == "" {
		_, key, err := ed25519.GenerateKey(rand.Reader)

		if err != nil {
			return nil, err
		}

		return ssh.NewSignerFromKey(key)
	}

	data, err := os.ReadFile(name)

	if err != nil {
		return nil, err
	}

	return ssh.ParsePrivateKey(data)
}
