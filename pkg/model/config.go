package model

import (
	"errors"
	"fmt"
	"net"
	"path"
	"strconv"
	"time"
)

type Config struct {
	Host string `ini:"host"`
	Port int    `ini:"port"`
	User string `ini:"user"`

	Repository string `ini:"repository"`
	Path       string `ini:"path"`

	Program string `ini:"program"`
	Install string `ini:"install"`
	Test    string `ini:"test"`

	SSH SSHConfig `ini:"ssh"`
}

type SSHConfig struct {
	KeyFile       string `ini:"key_file"`
	KeyPassphrase string `ini:"-"`

	Password     string `ini:"-"`
	SudoPassword string `ini:"-"`

	KnownHosts string `ini:"known_hosts"`
	Insecure   bool   `ini:"insecure"`

	Timeout time.Duration `ini:"timeout"`
}

func Default() Config {
	return Config{
		Host: "achtung.janerist.net",
		Port: 22,
		User: "janerist",

		Repository: "http://github.com/janerist/achtung5.git",
		Path:       "/home/janerist/apps/achtung5",

		Program: "achtung5",
		Install: "npm install",
		Test:    "npm test",

		SSH: SSHConfig{
			Timeout: 30 * time.Second,
		},
	}
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) Validate() error {
	var errs []error

	required := []struct {
		name  string
		value string
	}{
		{"host", c.Host},
		{"user", c.User},
		{"repository", c.Repository},
		{"path", c.Path},
		{"program", c.Program},
		{"install", c.Install},
		{"test", c.Test},
	}

	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	if c.Path != "" && !path.IsAbs(c.Path) {
		errs = append(errs, fmt.Errorf("path %q must be absolute", c.Path))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	return errors.Join(errs...)
}
