package token

import (
	"context"
	"flag"
	"fmt"

	"github.com/informaticsmatters/squonk2-dm-api-go/internal/cmd/base"
)

type Command struct {
	*base.Command

	flagPrior string
}

func (c *Command) Synopsis() string {
	return "Print a Data Manager access token"
}

func (c *Command) Help() string {
	return `Usage: dmapi token [options]

  Logs in to the configured Keycloak realm and prints an access token that
  other commands accept with -token, or through KEYCLOAK_TOKEN:

      export KEYCLOAK_TOKEN=$(dmapi token)

  Tokens have a limited lifetime. Pass the current one with -prior to get it
  back unchanged while it has at least a minute left.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("token", flag.ContinueOnError))
	c.AddClientFlags(f)

	f.StringVar(
		&c.flagPrior, "prior", "",
		"A previously issued token to reuse if it is still valid.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, client, err := c.Setup()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	token, err := c.Token(context.Background(), cfg, client, c.flagPrior)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error getting access token: %v", err))
		return 1
	}

	c.UI.Output(token)
	return 0
}
