package file

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/cli"

	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Transfer files to and from a project"
}

func (c *Command) Help() string {
	return `Usage: dmapi file <subcommand> [options] [args]

  This command groups subcommands for the unmanaged files of a project.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}

// projectFlags are shared by every file subcommand.
type projectFlags struct {
	project string
	path    string
}

func (p *projectFlags) add(f *base.FlagSet) {
	f.StringVar(
		&p.project, "project", "",
		"[PROJECT_ID] (Required) Project ID.",
	)
	f.StringVar(
		&p.path, "path", "/",
		"Path within the project, beginning with /.",
	)
}

func (p *projectFlags) check(ui cli.Ui) bool {
	if p.project == "" {
		p.project = os.Getenv("PROJECT_ID")
	}
	if p.project == "" {
		ui.Error("project flag is required (-project or PROJECT_ID)")
		return false
	}
	return true
}

type ListCommand struct {
	*base.Command
	projectFlags

	flagHidden bool
}

func (c *ListCommand) Synopsis() string {
	return "List files on a project path"
}

func (c *ListCommand) Help() string {
	return `Usage: dmapi file list -project=<id> [options]` + c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("file list", flag.ContinueOnError))
	c.AddClientFlags(f)
	c.projectFlags.add(f)
	f.BoolVar(&c.flagHidden, "hidden", false, "Include hidden files.")
	return f
}

func (c *ListCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if !c.check(c.UI) {
		return 1
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	resp := client.ListProjectFiles(ctx, token, c.project, c.path, c.flagHidden)
	if !resp.Success() {
		return c.Failed("error listing files", resp)
	}
	if err := c.Output(resp.Payload()); err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	return 0
}

type PutCommand struct {
	*base.Command
	projectFlags

	flagForce bool
}

func (c *PutCommand) Synopsis() string {
	return "Upload local files to a project"
}

func (c *PutCommand) Help() string {
	return `Usage: dmapi file put -project=<id> [options] <file>...

  Uploads files to a project path. Files already present on the path are
  left alone unless -force is given.` + c.Flags().Help()
}

func (c *PutCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("file put", flag.ContinueOnError))
	c.AddClientFlags(f)
	c.projectFlags.add(f)
	f.BoolVar(&c.flagForce, "force", false, "Replace files that already exist.")
	return f
}

func (c *PutCommand) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if !c.check(c.UI) {
		return 1
	}
	if f.NArg() == 0 {
		c.UI.Error("at least one file is required")
		return 1
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	resp := client.PutUnmanagedProjectFiles(ctx, token, c.project, f.Args(), c.path, c.flagForce)
	if !resp.Success() {
		return c.Failed("error uploading files", resp)
	}
	c.UI.Info(fmt.Sprintf("Uploaded %d file(s) to %s", f.NArg(), c.path))
	return 0
}

type GetCommand struct {
	*base.Command
	projectFlags

	flagOut string
}

func (c *GetCommand) Synopsis() string {
	return "Download a file from a project"
}

func (c *GetCommand) Help() string {
	return `Usage: dmapi file get -project=<id> [options] <file>` + c.Flags().Help()
}

func (c *GetCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("file get", flag.ContinueOnError))
	c.AddClientFlags(f)
	c.projectFlags.add(f)
	f.StringVar(
		&c.flagOut, "out", "",
		"Local file to write. Defaults to the project file name in the\n"+
			"current directory.",
	)
	return f
}

func (c *GetCommand) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if !c.check(c.UI) {
		return 1
	}
	if f.NArg() != 1 {
		c.UI.Error("exactly one file is required")
		return 1
	}
	name := f.Arg(0)
	out := c.flagOut
	if out == "" {
		out = filepath.Base(name)
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	resp := client.GetUnmanagedProjectFile(ctx, token, c.project, name, out, c.path)
	if !resp.Success() {
		return c.Failed("error downloading file", resp)
	}
	c.UI.Info("Wrote " + out)
	return 0
}

type DeleteCommand struct {
	*base.Command
	projectFlags
}

func (c *DeleteCommand) Synopsis() string {
	return "Delete files from a project"
}

func (c *DeleteCommand) Help() string {
	return `Usage: dmapi file delete -project=<id> [options] <file>...

  Deletes files in the order given, stopping at the first failure.` + c.Flags().Help()
}

func (c *DeleteCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("file delete", flag.ContinueOnError))
	c.AddClientFlags(f)
	c.projectFlags.add(f)
	return f
}

func (c *DeleteCommand) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if !c.check(c.UI) {
		return 1
	}
	if f.NArg() == 0 {
		c.UI.Error("at least one file is required")
		return 1
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	resp := client.DeleteUnmanagedProjectFiles(ctx, token, c.project, f.Args(), c.path)
	if !resp.Success() {
		return c.Failed("error deleting files", resp)
	}
	return 0
}
