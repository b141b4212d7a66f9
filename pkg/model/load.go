package model

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
)

// Load returns the default config overlaid by the INI file at name (if any)
// and then by DEPLOY_* environment variables.
//
// Top-level keys live in the default section, SSH settings in [ssh]:
//
//	host = example.com
//	path = /srv/app
//
//	[ssh]
//	key_file = ~/.ssh/id_ed25519
func Load(name string) (Config, error) {
	c := Default()

	if name != "" {
		f, err := ini.Load(name)

		if err != nil {
			return c, fmt.Errorf("load config %s: %w", name, err)
		}

		if err := f.MapTo(&c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", name, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return c, err
	}

	return c, nil
}

func (c *Config) applyEnv() error {
	vars := map[string]*string{
		"DEPLOY_HOST":           &c.Host,
		"DEPLOY_USER":           &c.User,
		"DEPLOY_REPOSITORY":     &c.Repository,
		"DEPLOY_PATH":           &c.Path,
		"DEPLOY_PROGRAM":        &c.Program,
		"DEPLOY_INSTALL":        &c.Install,
		"DEPLOY_TEST":           &c.Test,
		"DEPLOY_KEY_FILE":       &c.SSH.KeyFile,
		"DEPLOY_KEY_PASSPHRASE": &c.SSH.KeyPassphrase,
		"DEPLOY_PASSWORD":       &c.SSH.Password,
		"DEPLOY_SUDO_PASSWORD":  &c.SSH.SudoPassword,
		"DEPLOY_KNOWN_HOSTS":    &c.SSH.KnownHosts,
	}

	for key, ptr := range vars {
		if val, ok := os.LookupEnv(key); ok {
			*ptr = val
		}
	}

	if val := os.Getenv("DEPLOY_PORT"); val != "" {
		port, err := strconv.Atoi(val)

		if err != nil {
			return fmt.Errorf("DEPLOY_PORT: %w", err)
		}

		c.Port = port
	}

	if val := os.Getenv("DEPLOY_INSECURE"); val != "" {
		insecure, err := strconv.ParseBool(val)

		if err != nil {
			return fmt.Errorf("DEPLOY_INSECURE: %w", err)
		}

		c.SSH.Insecure = insecure
	}

	if val := os.Getenv("DEPLOY_TIMEOUT"); val != "" {
		timeout, err := time.ParseDuration(val)

		if err != nil {
			return fmt.Errorf("DEPLOY_TIMEOUT: %w", err)
		}

		c.SSH.Timeout = timeout
	}

	return nil
}
