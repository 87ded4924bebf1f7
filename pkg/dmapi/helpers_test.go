package dmapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/informaticsmatters/squonk2-dm-api-go/pkg/dmapi"
)

// recordedRequest is what the fake Data Manager received.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Form parses a form-encoded body.
func (r recordedRequest) Form(t *testing.T) url.Values {
	t.Helper()
	form, err := url.ParseQuery(string(r.Body))
	require.NoError(t, err)
	return form
}

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (rec *recorder) all() []recordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]recordedRequest(nil), rec.requests...)
}

func (rec *recorder) count(method, path string) int {
	n := 0
	for _, r := range rec.all() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// newManager starts a fake Data Manager served by handler and returns a
// Client pointed at it with an in-memory filesystem.
func newManager(t *testing.T, handler http.HandlerFunc) (*dmapi.Client, *recorder, afero.Fs) {
	t.Helper()

	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.requests = append(rec.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		rec.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	fs := afero.NewMemMapFs()
	client := dmapi.New(
		dmapi.WithAPIURL(server.URL+"/data-manager-api", true),
		dmapi.WithFs(fs),
		dmapi.WithLogger(hclog.NewNullLogger()),
	)
	return client, rec, fs
}

// countingTransport counts round trips and fails every one of them.
type countingTransport struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil, c.err
}

func (c *countingTransport) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

const testToken = "access-token"
