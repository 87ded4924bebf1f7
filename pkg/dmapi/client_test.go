package dmapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informaticsmatters/squonk2-dm-api-go/pkg/dmapi"
)

func TestNew_APIURLFromEnvironment(t *testing.T) {
	t.Setenv(dmapi.EnvAPIURL, "https://example.com/data-manager-api")

	url, verify := dmapi.New().APIURL()
	assert.Equal(t, "https://example.com/data-manager-api", url)
	assert.True(t, verify)

	url, verify = dmapi.New(dmapi.WithAPIURL("https://other.example.com", false)).APIURL()
	assert.Equal(t, "https://other.example.com", url)
	assert.False(t, verify)
}

func TestSetAPIURL(t *testing.T) {
	t.Setenv(dmapi.EnvAPIURL, "")
	client := dmapi.New()

	url, _ := client.APIURL()
	assert.Empty(t, url)

	require.NoError(t, client.SetAPIURL("https://example.com/data-manager-api", false))
	url, verify := client.APIURL()
	assert.Equal(t, "https://example.com/data-manager-api", url)
	assert.False(t, verify)

	err := client.SetAPIURL("", true)
	assert.ErrorIs(t, err, dmapi.ErrInvalidArgument)
	url, verify = client.APIURL()
	assert.Equal(t, "https://example.com/data-manager-api", url, "failed set leaves the URL alone")
	assert.False(t, verify)
}

func TestSetAPIURL_RedirectsCalls(t *testing.T) {
	var hits [2]int
	servers := make([]*httptest.Server, 2)
	for i := range servers {
		servers[i] = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits[i]++
			writeJSON(w, http.StatusOK, map[string]any{"version": "1.0"})
		}))
		defer servers[i].Close()
	}

	client := dmapi.New(dmapi.WithAPIURL(servers[0].URL, true))
	require.True(t, client.GetVersion(context.Background(), testToken).Success())

	require.NoError(t, client.SetAPIURL(servers[1].URL, true))
	require.True(t, client.GetVersion(context.Background(), testToken).Success())

	assert.Equal(t, [2]int{1, 1}, hits)
}

func TestSetAPIURL_TLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"version": "1.0"})
	}))
	defer server.Close()

	client := dmapi.New(dmapi.WithAPIURL(server.URL, true))
	resp := client.GetVersion(context.Background(), testToken)
	assert.ErrorIs(t, resp.Err(), dmapi.ErrTransport, "self-signed certificate is refused")

	require.NoError(t, client.SetAPIURL(server.URL, false))
	resp = client.GetVersion(context.Background(), testToken)
	assert.True(t, resp.Success(), "%v", resp.Err())
}

func TestSetAPIURL_WarnsWhenVerificationDisabled(t *testing.T) {
	var buf safeBuffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Warn})
	client := dmapi.New(dmapi.WithLogger(logger))

	require.NoError(t, client.SetAPIURL("https://example.com", true))
	assert.Empty(t, buf.String())

	require.NoError(t, client.SetAPIURL("https://example.com", false))
	assert.Contains(t, buf.String(), "TLS certificate verification disabled")
}

func TestClient_ConcurrentUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"version": "1.0"})
	}))
	defer server.Close()

	client := dmapi.New(dmapi.WithAPIURL(server.URL, true))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp := client.GetVersion(context.Background(), testToken)
			assert.True(t, resp.Success())
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, client.SetAPIURL(server.URL, true))
		}()
	}
	wg.Wait()
}

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
