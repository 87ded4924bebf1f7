// Package base holds what every dmapi subcommand shares: the logger and UI,
// the -config/-token/-format flags, and building a Data Manager client and
// access token from them.
package base

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"gopkg.in/yaml.v3"

	"github.com/informaticsmatters/squonk2-dm-api-go/pkg/dmapi"
)

// EnvToken supplies an access token when -token is not given.
const EnvToken = "KEYCLOAK_TOKEN"

type Command struct {
	Log hclog.Logger
	UI  cli.Ui

	// ClientOptions are appended when building the Data Manager client.
	ClientOptions []dmapi.Option

	flagConfig string
	flagToken  string
	flagFormat string
}

// AddClientFlags registers the flags needed to reach the Data Manager.
func (c *Command) AddClientFlags(f *FlagSet) {
	f.StringVar(
		&c.flagConfig, "config", "",
		"Path to an HCL configuration file. Without one the SQUONK_API_*\n"+
			"environment variables are used.",
	)
	f.StringVar(
		&c.flagToken, "token", "",
		"["+EnvToken+"] Access token to use instead of logging in with the\n"+
			"configured Keycloak credentials.",
	)
	f.StringVar(
		&c.flagFormat, "format", "json",
		"Output format for API responses: json or yaml.",
	)
}

// Config loads the configuration named by -config, or the environment.
func (c *Command) Config() (*dmapi.Config, error) {
	if c.flagConfig == "" {
		cfg := dmapi.ConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid environment configuration: %w", err)
		}
		return cfg, nil
	}
	return dmapi.LoadConfig(c.flagConfig)
}

// Client builds a Data Manager client from cfg.
func (c *Command) Client(cfg *dmapi.Config) (*dmapi.Client, error) {
	opts := append([]dmapi.Option{dmapi.WithLogger(c.Log.Named("dmapi"))}, c.ClientOptions...)
	return dmapi.NewFromConfig(cfg, opts...)
}

// Setup is Config followed by Client.
func (c *Command) Setup() (*dmapi.Config, *dmapi.Client, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, nil, err
	}
	client, err := c.Client(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

// Token returns the token given with -token (or KEYCLOAK_TOKEN), otherwise
// one from the configured Keycloak realm. prior is handed back while it is
// still good.
func (c *Command) Token(ctx context.Context, cfg *dmapi.Config, client *dmapi.Client, prior string) (string, error) {
	if c.flagToken != "" {
		return c.flagToken, nil
	}
	if token := os.Getenv(EnvToken); token != "" {
		return token, nil
	}

	req, err := cfg.TokenRequest(prior)
	if err != nil {
		return "", fmt.Errorf("no access token: use -token, %s or a keycloak configuration", EnvToken)
	}
	return client.GetAccessToken(ctx, req)
}

// Connect is Setup followed by Token. Errors are reported to the UI and ok
// is false.
func (c *Command) Connect(ctx context.Context) (cfg *dmapi.Config, client *dmapi.Client, token string, ok bool) {
	cfg, client, err := c.Setup()
	if err != nil {
		c.UI.Error(err.Error())
		return nil, nil, "", false
	}
	token, err = c.Token(ctx, cfg, client, "")
	if err != nil {
		c.UI.Error(fmt.Sprintf("error getting access token: %v", err))
		return nil, nil, "", false
	}
	return cfg, client, token, true
}

// Output writes v to the UI in the -format encoding.
func (c *Command) Output(v any) error {
	var (
		out []byte
		err error
	)
	switch c.flagFormat {
	case "", "json":
		out, err = json.MarshalIndent(v, "", "  ")
	case "yaml":
		out, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unknown output format %q", c.flagFormat)
	}
	if err != nil {
		return fmt.Errorf("error encoding output: %w", err)
	}
	c.UI.Output(string(out))
	return nil
}

// Failed reports a failed Response and returns the exit code to use.
func (c *Command) Failed(what string, resp *dmapi.Response) int {
	c.UI.Error(fmt.Sprintf("%s: %v", what, resp.Err()))
	return 1
}
