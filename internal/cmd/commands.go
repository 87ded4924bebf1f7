package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/base"
	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/commands/file"
	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/commands/job"
	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/commands/ping"
	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/commands/project"
	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/commands/token"
	"github.com/informaticsmatters/squonk2-dm-api-go/internal/version"
	"github.com/informaticsmatters/squonk2-dm-api-go/pkg/dmapi"
)

// CommandOption adjusts the base every command is built on.
type CommandOption func(*base.Command)

// WithClientOptions passes options to every Data Manager client the
// commands create.
func WithClientOptions(opts ...dmapi.Option) CommandOption {
	return func(b *base.Command) {
		b.ClientOptions = append(b.ClientOptions, opts...)
	}
}

func commands(log hclog.Logger, ui cli.Ui, opts ...CommandOption) map[string]cli.CommandFactory {
	b := &base.Command{
		Log: log,
		UI:  ui,
	}
	for _, opt := range opts {
		opt(b)
	}

	return map[string]cli.CommandFactory{
		"file": func() (cli.Command, error) {
			return &file.Command{Command: b}, nil
		},
		"file delete": func() (cli.Command, error) {
			return &file.DeleteCommand{Command: b}, nil
		},
		"file get": func() (cli.Command, error) {
			return &file.GetCommand{Command: b}, nil
		},
		"file list": func() (cli.Command, error) {
			return &file.ListCommand{Command: b}, nil
		},
		"file put": func() (cli.Command, error) {
			return &file.PutCommand{Command: b}, nil
		},
		"job": func() (cli.Command, error) {
			return &job.Command{Command: b}, nil
		},
		"job list": func() (cli.Command, error) {
			return &job.ListCommand{Command: b}, nil
		},
		"job run": func() (cli.Command, error) {
			return &job.RunCommand{Command: b}, nil
		},
		"ping": func() (cli.Command, error) {
			return &ping.Command{Command: b}, nil
		},
		"project": func() (cli.Command, error) {
			return &project.Command{Command: b}, nil
		},
		"project create": func() (cli.Command, error) {
			return &project.CreateCommand{Command: b}, nil
		},
		"project delete": func() (cli.Command, error) {
			return &project.DeleteCommand{Command: b}, nil
		},
		"project list": func() (cli.Command, error) {
			return &project.ListCommand{Command: b}, nil
		},
		"token": func() (cli.Command, error) {
			return &token.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &versionCommand{ui: ui}, nil
		},
	}
}

type versionCommand struct {
	ui cli.Ui
}

func (c *versionCommand) Synopsis() string { return "Print the dmapi version" }
func (c *versionCommand) Help() string     { return "Usage: dmapi version" }

func (c *versionCommand) Run(args []string) int {
	c.ui.Output(version.Version)
	return 0
}
