// Package keycloaktest runs a minimal Keycloak realm for tests: realm
// metadata with an RSA public key, and a password-grant token endpoint that
// issues RS256 tokens signed with the matching private key.
package keycloaktest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Realm is a fake Keycloak server hosting a single realm.
type Realm struct {
	Name   string
	Server *httptest.Server

	key *rsa.PrivateKey

	mu               sync.Mutex
	metadataRequests int
	tokenRequests    int
	lastTokenForm    url.Values
	tokenStatus      int
	omitAccessToken  bool
	tokenLifetime    time.Duration
}

// New starts a realm called name. The server is closed when the test ends.
func New(t testing.TB, name string) *Realm {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate realm key: %v", err)
	}

	r := &Realm{
		Name:          name,
		key:           key,
		tokenStatus:   http.StatusOK,
		tokenLifetime: 5 * time.Minute,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /realms/{realm}", r.handleMetadata)
	mux.HandleFunc("POST /realms/{realm}/protocol/openid-connect/token", r.handleToken)
	r.Server = httptest.NewServer(mux)
	t.Cleanup(r.Server.Close)

	return r
}

// URL is the Keycloak base URL, the equivalent of "https://example.com/auth".
func (r *Realm) URL() string {
	return r.Server.URL
}

// RealmURL is URL()/realms/Name.
func (r *Realm) RealmURL() string {
	return r.Server.URL + "/realms/" + r.Name
}

// Mint returns a token signed by the realm key that expires at exp.
func (r *Realm) Mint(t testing.TB, exp time.Time) string {
	t.Helper()
	token, err := r.sign(exp)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// MintClaims returns a token carrying exactly claims, signed by the realm key.
func (r *Realm) MintClaims(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(r.key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// MintUnsigned returns a token with the given expiry signed by an unrelated
// key, which the realm's public key does not verify.
func MintUnsigned(t testing.TB, exp time.Time) string {
	t.Helper()
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString(other)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func (r *Realm) sign(exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss": r.RealmURL(),
		"jti": uuid.NewString(),
		"iat": time.Now().Unix(),
		"exp": exp.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(r.key)
}

// MetadataRequests is the number of realm metadata requests served.
func (r *Realm) MetadataRequests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadataRequests
}

// TokenRequests is the number of token requests served.
func (r *Realm) TokenRequests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokenRequests
}

// LastTokenForm is the form of the most recent token request.
func (r *Realm) LastTokenForm() url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTokenForm
}

// FailTokenRequests makes the token endpoint answer with status. A 2xx
// status still carries a token.
func (r *Realm) FailTokenRequests(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenStatus = status
}

// OmitAccessToken makes the token endpoint answer 200 without access_token.
func (r *Realm) OmitAccessToken() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.omitAccessToken = true
}

func (r *Realm) handleMetadata(w http.ResponseWriter, req *http.Request) {
	if req.PathValue("realm") != r.Name {
		http.NotFound(w, req)
		return
	}

	r.mu.Lock()
	r.metadataRequests++
	r.mu.Unlock()

	der, err := x509.MarshalPKIXPublicKey(&r.key.PublicKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"realm":             r.Name,
		"public_key":        base64.StdEncoding.EncodeToString(der),
		"token-service":     r.RealmURL() + "/protocol/openid-connect",
		"account-service":   r.RealmURL() + "/account",
		"tokens-not-before": 0,
	})
}

func (r *Realm) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.PathValue("realm") != r.Name {
		http.NotFound(w, req)
		return
	}
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	r.tokenRequests++
	r.lastTokenForm = req.PostForm
	status := r.tokenStatus
	omit := r.omitAccessToken
	lifetime := r.tokenLifetime
	r.mu.Unlock()

	if status >= http.StatusMultipleChoices {
		writeJSON(w, status, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Invalid user credentials",
		})
		return
	}

	body := map[string]any{
		"token_type": "Bearer",
		"expires_in": int(lifetime.Seconds()),
	}
	if !omit {
		token, err := r.sign(time.Now().Add(lifetime))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body["access_token"] = token
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
