package ping

import (
	"context"
	"flag"
	"fmt"

	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/base"
	"github.com/informaticsmatters/squonk2-dm-api-go/pkg/dmapi"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Check the Data Manager is responding"
}

func (c *Command) Help() string {
	return `Usage: dmapi ping [options]

  Pings the Data Manager and prints its version.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("ping", flag.ContinueOnError))
	c.AddClientFlags(f)
	return f
}

func (c *Command) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	ctx := context.Background()
	_, client, token, ok := c.Connect(ctx)
	if !ok {
		return 1
	}

	if resp := client.Ping(ctx, token); !resp.Success() {
		return c.Failed("API not responding", resp)
	}

	resp := client.GetVersion(ctx, token)
	if !resp.Success() {
		return c.Failed("error getting version", resp)
	}
	var v dmapi.Version
	if err := resp.Decode(&v); err != nil {
		c.UI.Error(fmt.Sprintf("error reading version: %v", err))
		return 1
	}

	url, _ := client.APIURL()
	c.UI.Output(fmt.Sprintf("API OK (%s, version %s)", url, v.Version))
	return 0
}
