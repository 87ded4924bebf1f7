package dmapi

import (
	"crypto/tls"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// Client is a handle on one Data Manager API. It is safe for concurrent use.
//
// The API URL and TLS setting are shared by every call and guarded by a
// single lock; operations only hold it long enough to take a snapshot.
type Client struct {
	mu         sync.RWMutex
	apiURL     string
	verifyTLS  bool
	httpClient *http.Client

	transport http.RoundTripper
	fs        afero.Fs
	logger    hclog.Logger
	tokens    *TokenManager
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger hclog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTransport replaces the HTTP transport used for every request,
// including those sent to the identity provider. The TLS verification
// setting is not applied to a custom transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithFs sets the filesystem used to read uploads and write downloads.
// The default is the operating system filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) {
		c.fs = fs
	}
}

// WithAPIURL sets the initial API URL, overriding SQUONK_API_URL.
func WithAPIURL(url string, verifyTLS bool) Option {
	return func(c *Client) {
		c.apiURL = url
		c.verifyTLS = verifyTLS
	}
}

// New creates a Client. The API URL is taken from SQUONK_API_URL unless
// WithAPIURL is given; it may be left empty and set later with SetAPIURL.
func New(opts ...Option) *Client {
	c := &Client{
		apiURL:    os.Getenv(EnvAPIURL),
		verifyTLS: true,
		fs:        afero.NewOsFs(),
		logger:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = c.newHTTPClient(c.verifyTLS)
	c.tokens = newTokenManager(c.currentHTTPClient, c.logger.Named("keycloak"))
	return c
}

// NewFromConfig creates a Client from a Config.
func NewFromConfig(cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, wrapError(ErrInvalidArgument, "invalid configuration", err)
	}
	opts = append([]Option{WithAPIURL(cfg.APIURL, cfg.VerifyTLS())}, opts...)
	return New(opts...), nil
}

// SetAPIURL replaces the API URL and TLS verification setting used by all
// subsequent calls. Disabling verification is logged as a warning.
func (c *Client) SetAPIURL(url string, verifyTLS bool) error {
	if url == "" {
		return newError(ErrInvalidArgument, "API URL must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiURL = url
	if verifyTLS != c.verifyTLS || c.httpClient == nil {
		c.httpClient = c.newHTTPClient(verifyTLS)
	}
	c.verifyTLS = verifyTLS

	if !verifyTLS {
		c.logger.Warn("TLS certificate verification disabled", "url", url)
	}
	return nil
}

// APIURL returns the API URL and whether TLS certificates are verified.
func (c *Client) APIURL() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiURL, c.verifyTLS
}

func (c *Client) snapshot() (string, *http.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiURL, c.httpClient
}

func (c *Client) currentHTTPClient() *http.Client {
	_, hc := c.snapshot()
	return hc
}

// newHTTPClient builds the client used for calls. Per-call timeouts come
// from the request context, so the client itself has none.
func (c *Client) newHTTPClient(verifyTLS bool) *http.Client {
	if c.transport != nil {
		return &http.Client{Transport: c.transport}
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}
	return &http.Client{Transport: transport}
}
