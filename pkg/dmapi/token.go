package dmapi

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

const (
	// PriorTokenMinRemaining is the least lifetime a prior token must have
	// left to be handed back instead of fetching a new one.
	PriorTokenMinRemaining = 1 * time.Minute

	defaultTokenTimeout = 4 * time.Second
)

// TokenRequest holds the inputs of a password grant against a Keycloak realm.
type TokenRequest struct {
	// KeycloakURL is the Keycloak server, typically "https://example.com/auth".
	KeycloakURL string
	Realm       string
	ClientID    string
	Username    string
	Password    string

	// PriorToken, if set, is returned unchanged while it has at least
	// PriorTokenMinRemaining left before it expires.
	PriorToken string

	// Timeout bounds each identity provider call. Default: 4 seconds.
	Timeout time.Duration
}

// realmURL is "{KeycloakURL}/realms/{Realm}".
func (r TokenRequest) realmURL() string {
	return r.KeycloakURL + "/realms/" + r.Realm
}

// TokenManager obtains access tokens from Keycloak, handing back prior
// tokens while they remain valid. It remembers the public key of the most
// recently used realm; a different realm replaces it.
type TokenManager struct {
	mu        sync.Mutex
	realmURL  string
	publicKey *rsa.PublicKey

	httpClient func() *http.Client
	logger     hclog.Logger
	now        func() time.Time
}

func newTokenManager(httpClient func() *http.Client, logger hclog.Logger) *TokenManager {
	return &TokenManager{
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// GetAccessToken returns an access token for the Data Manager. See
// TokenManager.GetAccessToken.
func (c *Client) GetAccessToken(ctx context.Context, req TokenRequest) (string, error) {
	return c.tokens.GetAccessToken(ctx, req)
}

// GetAccessToken returns req.PriorToken if it verifies against the realm's
// public key and has at least a minute left, otherwise a new token from a
// password grant. The returned error is always a *Error.
func (m *TokenManager) GetAccessToken(ctx context.Context, req TokenRequest) (string, error) {
	if err := checkArgs(
		arg("keycloak URL", req.KeycloakURL, required),
		arg("realm", req.Realm, required),
		arg("client ID", req.ClientID, required),
		arg("username", req.Username, required),
		arg("password", req.Password, required),
	); err != nil {
		return "", err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTokenTimeout
	}
	realmURL := req.realmURL()

	if req.PriorToken != "" {
		key, err := m.realmKey(ctx, realmURL, timeout)
		if err != nil {
			return "", err
		}
		remaining, err := m.remainingLifetime(req.PriorToken, key)
		if err != nil {
			return "", err
		}
		if remaining >= PriorTokenMinRemaining {
			m.logger.Debug("reusing prior token", "realm", realmURL, "remaining", remaining)
			return req.PriorToken, nil
		}
		m.logger.Debug("prior token close to expiry", "realm", realmURL, "remaining", remaining)
	}

	return m.exchange(ctx, realmURL, req, timeout)
}

// realmKey returns the cached public key for realmURL, fetching it first if
// the cache holds another realm's key or none.
func (m *TokenManager) realmKey(ctx context.Context, realmURL string, timeout time.Duration) (*rsa.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.realmURL == realmURL && m.publicKey != nil {
		return m.publicKey, nil
	}

	key, err := m.fetchRealmKey(ctx, realmURL, timeout)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("cached realm public key", "realm", realmURL)
	m.realmURL = realmURL
	m.publicKey = key
	return key, nil
}

func (m *TokenManager) fetchRealmKey(ctx context.Context, realmURL string, timeout time.Duration) (*rsa.PublicKey, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, realmURL, nil)
	if err != nil {
		return nil, wrapError(ErrRealmMetadata, "failed to create realm request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient().Do(req)
	if err != nil {
		m.logger.Error("failed to get realm metadata", "realm", realmURL, "error", err)
		return nil, wrapError(ErrRealmMetadata, "failed to get realm metadata", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		m.logger.Error("realm metadata request failed", "realm", realmURL,
			"status", resp.StatusCode, "body", string(body))
		return nil, &Error{
			Kind:       ErrRealmMetadata,
			Message:    fmt.Sprintf("realm metadata returned status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	var realm struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&realm); err != nil {
		return nil, wrapError(ErrRealmMetadata, "failed to decode realm metadata", err)
	}
	if realm.PublicKey == "" {
		return nil, newError(ErrRealmMetadata, "realm metadata has no public_key")
	}

	pemKey := "-----BEGIN PUBLIC KEY-----\n" + realm.PublicKey + "\n-----END PUBLIC KEY-----"
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, wrapError(ErrRealmMetadata, "failed to parse realm public key", err)
	}
	return key, nil
}

// remainingLifetime verifies token against key and returns the time left
// before its exp claim. Expiry is not enforced here: an expired token just
// has a negative remaining lifetime.
func (m *TokenManager) remainingLifetime(token string, key *rsa.PublicKey) (time.Duration, error) {
	parsed, err := jwt.Parse(token,
		func(*jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return 0, wrapError(ErrTokenDecode, "failed to verify prior token", err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return 0, wrapError(ErrTokenDecode, "prior token has an invalid exp claim", err)
	}
	if exp == nil {
		return 0, newError(ErrTokenDecode, "prior token has no exp claim")
	}
	return exp.Sub(m.now().UTC()), nil
}

// exchange performs the password grant against the realm token endpoint.
func (m *TokenManager) exchange(ctx context.Context, realmURL string, req TokenRequest, timeout time.Duration) (string, error) {
	cfg := &oauth2.Config{
		ClientID: req.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  realmURL + "/protocol/openid-connect/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// oauth2 takes any 2xx as success; Keycloak answers a grant with 200.
	hc := *m.httpClient()
	rec := &statusRecorder{next: hc.Transport}
	hc.Transport = rec
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &hc)

	tok, err := cfg.PasswordCredentialsToken(ctx, req.Username, req.Password)
	if err != nil {
		return "", m.classifyExchangeError(realmURL, err)
	}
	if rec.status != http.StatusOK {
		m.logger.Error("failed to get token", "realm", realmURL, "status", rec.status)
		return "", &Error{
			Kind:       ErrTokenExchange,
			Message:    fmt.Sprintf("token request returned status %d", rec.status),
			StatusCode: rec.status,
		}
	}

	m.logger.Debug("obtained new access token", "realm", realmURL, "expiry", tok.Expiry)
	return tok.AccessToken, nil
}

// statusRecorder remembers the status of the last response it carried.
type statusRecorder struct {
	next   http.RoundTripper
	status int
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	next := s.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if err == nil {
		s.status = resp.StatusCode
	}
	return resp, err
}

func (m *TokenManager) classifyExchangeError(realmURL string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		m.logger.Error("failed to get token", "realm", realmURL,
			"status", status, "error_code", retrieveErr.ErrorCode)
		return &Error{
			Kind:       ErrTokenExchange,
			Message:    fmt.Sprintf("token request returned status %d", status),
			StatusCode: status,
			cause:      err,
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		m.logger.Error("failed to get response from keycloak", "realm", realmURL, "error", err)
		return wrapError(ErrTokenExchange, "failed to get response from keycloak", err)
	}

	// A 2xx answer without a usable access_token.
	m.logger.Error("keycloak token response is malformed", "realm", realmURL, "error", err)
	return wrapError(ErrProtocol, "token response has no access_token", err)
}
