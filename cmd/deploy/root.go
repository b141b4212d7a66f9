package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/janerist/deploy/pkg/deploy"
	"github.com/janerist/deploy/pkg/model"
	"github.com/janerist/deploy/pkg/remote"
)

type options struct {
	configFile string

	host     string
	port     int
	user     string
	identity string
	insecure bool

	repository string
	path       string
	program    string

	askPass     bool
	askKeyPass  bool
	askSudoPass bool

	dryRun  bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the application to its host over SSH",
		Long: `deploy checks out the application on the remote host, installs its
dependencies, runs its tests and restarts it under supervisord.

Settings come from the built-in defaults, an optional INI file (--config),
DEPLOY_* environment variables and finally the flags below.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(o.verbose)
		},
	}

	o.bind(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "deploy",
			Short: "Sync the checkout, install, test and restart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.run(cmd, (*deploy.Runner).Deploy)
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Clone the repository, or pull it if already present",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.run(cmd, (*deploy.Runner).Sync)
			},
		},
		&cobra.Command{
			Use:   "restart",
			Short: "Restart the supervisord program",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.run(cmd, (*deploy.Runner).Restart)
			},
		},
	)

	return root
}

func (o *options) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configFile, "config", "c", "", "INI config file")

	fs.StringVarP(&o.host, "host", "H", "", "remote host")
	fs.IntVarP(&o.port, "port", "p", 0, "SSH port")
	fs.StringVarP(&o.user, "user", "u", "", "remote user")
	fs.StringVarP(&o.identity, "identity", "i", "", "private key file")
	fs.BoolVar(&o.insecure, "insecure", false, "skip host key verification")

	fs.StringVar(&o.repository, "repo", "", "repository URL")
	fs.StringVar(&o.path, "path", "", "install directory on the remote host")
	fs.StringVar(&o.program, "program", "", "supervisord program name")

	fs.BoolVar(&o.askPass, "ask-pass", false, "prompt for the SSH password")
	fs.BoolVar(&o.askKeyPass, "ask-key-pass", false, "prompt for the private key passphrase")
	fs.BoolVar(&o.askSudoPass, "ask-sudo-pass", false, "prompt for the sudo password")

	fs.BoolVarP(&o.dryRun, "dry-run", "n", false, "print commands instead of running them")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
}

func (o *options) config(fs *pflag.FlagSet) (model.Config, error) {
	c, err := model.Load(o.configFile)

	if err != nil {
		return c, err
	}

	if fs.Changed("host") {
		c.Host = o.host
	}

	if fs.Changed("port") {
		c.Port = o.port
	}

	if fs.Changed("user") {
		c.User = o.user
	}

	if fs.Changed("identity") {
		c.SSH.KeyFile = o.identity
	}

	if fs.Changed("insecure") {
		c.SSH.Insecure = o.insecure
	}

	if fs.Changed("repo") {
		c.Repository = o.repository
	}

	if fs.Changed("path") {
		c.Path = o.path
	}

	if fs.Changed("program") {
		c.Program = o.program
	}

	prompts := []struct {
		ask   bool
		label string
		value *string
	}{
		{o.askPass, "SSH password", &c.SSH.Password},
		{o.askKeyPass, "Key passphrase", &c.SSH.KeyPassphrase},
		{o.askSudoPass, "Sudo password", &c.SSH.SudoPassword},
	}

	for _, p := range prompts {
		if !p.ask {
			continue
		}

		value, err := promptSecret(p.label)

		if err != nil {
			return c, err
		}

		*p.value = value
	}

	return c, c.Validate()
}

func (o *options) run(cmd *cobra.Command, op func(*deploy.Runner, context.Context) error) error {
	c, err := o.config(cmd.Flags())

	if err != nil {
		return err
	}

	ctx := cmd.Context()

	client, err := remote.Dial(ctx, c)

	if err != nil {
		return err
	}

	defer client.Close()

	runner := deploy.New(client, c)

	if o.dryRun {
		runner.DryRun = cmd.OutOrStdout()
	}

	return op(runner, ctx)
}

func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for %s: stdin is not a terminal", label)
	}

	fmt.Fprint(os.Stderr, label+": ")

	data, err := term.ReadPassword(fd)

	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", err
	}

	return string(data), nil
}
