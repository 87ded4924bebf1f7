package project

import (
	"context"
	"flag"
	"fmt"

	"github.com/mitchellh/cli"

	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/base"
	"github.com/informaticsmatters/squonk2-dm-api-go/pkg/dmapi"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Manage Data Manager projects"
}

func (c *Command) Help() string {
	return `Usage: dmapi project <subcommand> [options] [args]

  This command groups subcommands for working with projects.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}

type ListCommand struct {
	*base.Command
}

func (c *ListCommand) Synopsis() string {
	return "List the projects available to you"
}

func (c *ListCommand) Help() string {
	return `Usage: dmapi project list [options]` + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("project list", flag.ContinueOnError))
	c.AddClientFlags(f)
	return f
}

func (c *ListCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	resp := client.GetAvailableProjects(ctx, token)
	if !resp.Success() {
		return c.Failed("error listing projects", resp)
	}
	if err := c.Output(resp.Payload()); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}

type CreateCommand struct {
	*base.Command

	flagName    string
	flagProduct string
}

func (c *CreateCommand) Synopsis() string {
	return "Create a project"
}

func (c *CreateCommand) Help() string {
	return `Usage: dmapi project create -name=<name> [options]

  Creates a project and prints its ID.` + c.Flags().Help()
}

func (c *CreateCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("project create", flag.ContinueOnError))
	c.AddClientFlags(f)

	f.StringVar(
		&c.flagName, "name", "",
		"(Required) Name of the new project.",
	)
	f.StringVar(
		&c.flagProduct, "product", dmapi.TestProductID,
		"Account Server tier product ID. The default is a test product only\n"+
			"administrators may use.",
	)

	return f
}

func (c *CreateCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagName == "" {
		c.UI.Error("name flag is required")
		return 1
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	resp := client.CreateProject(ctx, token, c.flagName, c.flagProduct)
	if !resp.Success() {
		return c.Failed("error creating project", resp)
	}
	c.UI.Output(fmt.Sprint(resp.Payload()["project_id"]))
	return 0
}

type DeleteCommand struct {
	*base.Command
}

func (c *DeleteCommand) Synopsis() string {
	return "Delete projects"
}

func (c *DeleteCommand) Help() string {
	return `Usage: dmapi project delete [options] <project-id>...` + c.Flags().Help()
}

func (c *DeleteCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("project delete", flag.ContinueOnError))
	c.AddClientFlags(f)
	return f
}

func (c *DeleteCommand) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if f.NArg() == 0 {
		c.UI.Error("at least one project ID is required")
		return 1
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	for _, id := range f.Args() {
		if resp := client.DeleteProject(ctx, token, id); !resp.Success() {
			return c.Failed("error deleting project "+id, resp)
		}
		c.UI.Info("Deleted " + id)
	}
	return 0
}
