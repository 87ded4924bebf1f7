package dmapi

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Environment variables consulted for defaults.
const (
	EnvAPIURL             = "SQUONK_API_URL"
	EnvAPIURLValidation   = "SQUONK_API_URL_VALIDATION"
	EnvKeycloakURL        = "SQUONK_API_KEYCLOAK_URL"
	EnvKeycloakRealm      = "SQUONK_API_KEYCLOAK_REALM"
	EnvKeycloakClientID   = "SQUONK_API_KEYCLOAK_CLIENT_ID"
	EnvKeycloakUser       = "SQUONK_API_KEYCLOAK_USER"
	EnvKeycloakUserPasswd = "SQUONK_API_KEYCLOAK_USER_PASSWORD"
)

// Config describes how to reach a Data Manager and, optionally, the
// Keycloak realm that issues its access tokens.
//
// Example configuration (HCL):
//
//	api_url    = "https://example.com/data-manager-api"
//	tls_verify = true
//
//	keycloak {
//	  url       = "https://example.com/auth"
//	  realm     = "squonk"
//	  client_id = "data-manager-api"
//	  username  = "dmit-user"
//	  password  = "secret"
//	}
type Config struct {
	// APIURL is the Data Manager API base URL.
	// Example: "https://example.com/data-manager-api"
	APIURL string `hcl:"api_url,optional"`

	// TLSVerify controls TLS certificate verification. Default: true.
	TLSVerify *bool `hcl:"tls_verify,optional"`

	// Keycloak holds the identity provider settings used to obtain tokens.
	Keycloak *KeycloakConfig `hcl:"keycloak,block"`
}

// KeycloakConfig holds password-grant settings for a Keycloak realm.
type KeycloakConfig struct {
	URL      string `hcl:"url,optional"`
	Realm    string `hcl:"realm,optional"`
	ClientID string `hcl:"client_id,optional"`
	Username string `hcl:"username,optional"`
	Password string `hcl:"password,optional"`
}

// ConfigFromEnv builds a Config from the SQUONK_API_* environment
// variables. The Keycloak block is only set when SQUONK_API_KEYCLOAK_URL is.
func ConfigFromEnv() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	return cfg
}

// LoadConfig loads a Config from an HCL file. Values the file leaves empty
// fall back to the SQUONK_API_* environment variables.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration file path is required")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	var cfg Config
	if err := hclsimple.DecodeFile(filename, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration file %s: %w", filename, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.APIURL == "" {
		c.APIURL = os.Getenv(EnvAPIURL)
	}
	if c.TLSVerify == nil {
		if v, ok := os.LookupEnv(EnvAPIURLValidation); ok {
			verify := strings.ToLower(v) == "yes"
			c.TLSVerify = &verify
		}
	}

	if c.Keycloak == nil {
		if os.Getenv(EnvKeycloakURL) == "" {
			return
		}
		c.Keycloak = &KeycloakConfig{}
	}
	setIfEmpty(&c.Keycloak.URL, EnvKeycloakURL)
	setIfEmpty(&c.Keycloak.Realm, EnvKeycloakRealm)
	setIfEmpty(&c.Keycloak.ClientID, EnvKeycloakClientID)
	setIfEmpty(&c.Keycloak.Username, EnvKeycloakUser)
	setIfEmpty(&c.Keycloak.Password, EnvKeycloakUserPasswd)
}

func setIfEmpty(field *string, env string) {
	if *field == "" {
		*field = os.Getenv(env)
	}
}

// VerifyTLS returns the TLS verification setting, defaulting to true.
func (c *Config) VerifyTLS() bool {
	return c.TLSVerify == nil || *c.TLSVerify
}

// Validate checks the configuration. An empty APIURL is allowed; calls made
// through a Client without one fail with ErrNoAPIURL.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.By(httpURL)),
		validation.Field(&c.Keycloak),
	)
}

// Validate checks that every field needed for a password grant is present.
func (k KeycloakConfig) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.URL, validation.Required, validation.By(httpURL)),
		validation.Field(&k.Realm, validation.Required),
		validation.Field(&k.ClientID, validation.Required),
		validation.Field(&k.Username, validation.Required),
		validation.Field(&k.Password, validation.Required),
	)
}

// TokenRequest builds a TokenRequest from the Keycloak block, reusing
// priorToken when it still has time left.
func (c *Config) TokenRequest(priorToken string) (TokenRequest, error) {
	if c.Keycloak == nil {
		return TokenRequest{}, newError(ErrInvalidArgument, "no keycloak configuration")
	}
	return TokenRequest{
		KeycloakURL: c.Keycloak.URL,
		Realm:       c.Keycloak.Realm,
		ClientID:    c.Keycloak.ClientID,
		Username:    c.Keycloak.Username,
		Password:    c.Keycloak.Password,
		PriorToken:  priorToken,
	}, nil
}

func httpURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https scheme")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}
