package dmapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTransport struct {
	calls int
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

// deadlineTransport answers 200 and records the request context deadline.
type deadlineTransport struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	d.deadline, d.ok = req.Context().Deadline()
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader("{}")),
		Request:    req,
	}, nil
}

func TestWithTimeout_NonPositiveKeepsDefault(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		rt := &deadlineTransport{}
		c := New(WithAPIURL("http://dm.invalid/data-manager-api", true), WithTransport(rt))

		start := time.Now()
		resp := c.Ping(context.Background(), "access-token", WithTimeout(d))
		require.True(t, resp.Success(), "timeout %v", d)

		require.True(t, rt.ok, "timeout %v: request sent without a deadline", d)
		assert.WithinDuration(t, start.Add(DefaultTimeout), rt.deadline, time.Second)
	}

	assert.Equal(t, DefaultListTimeout, resolve(DefaultListTimeout, []CallOption{WithTimeout(0)}).timeout)
	assert.Equal(t, time.Second, resolve(DefaultListTimeout, []CallOption{WithTimeout(time.Second)}).timeout)
}

func TestDo_NoAPIURL(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	rt := &failingTransport{}
	c := New(WithTransport(rt))

	resp, raw := c.do(context.Background(), request{
		method:       http.MethodGet,
		path:         "/version",
		errorMessage: "Failed getting version",
	})

	assert.False(t, resp.Success())
	assert.Nil(t, raw)
	assert.ErrorIs(t, resp.Err(), ErrNoAPIURL)
	assert.Equal(t, map[string]any{"error": "No API URL defined"}, resp.Payload())
	assert.Zero(t, rt.calls)
}

func TestDo_TransportFailure(t *testing.T) {
	rt := &failingTransport{}
	c := New(WithAPIURL("http://dm.invalid/data-manager-api", true), WithTransport(rt))

	resp, raw := c.do(context.Background(), request{
		method:       http.MethodGet,
		path:         "/version",
		errorMessage: "Failed getting version",
	})

	assert.False(t, resp.Success())
	assert.Nil(t, raw)
	assert.ErrorIs(t, resp.Err(), ErrTransport)
	assert.Zero(t, resp.StatusCode())
	assert.Equal(t, "Failed getting version (resp=none)", resp.Payload()["error"])
	assert.Equal(t, 1, rt.calls)
}

func TestDo_StatusHandling(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		expected    []int
		wantSuccess bool
		wantPayload map[string]any
		wantKind    error
		wantMessage string
	}{
		{
			name:        "default expects 200",
			status:      http.StatusOK,
			body:        `{"version":"1.2.3"}`,
			wantSuccess: true,
			wantPayload: map[string]any{"version": "1.2.3"},
		},
		{
			name:        "non-JSON body is an empty payload",
			status:      http.StatusOK,
			body:        "not json",
			wantSuccess: true,
			wantPayload: map[string]any{},
		},
		{
			name:        "empty 204",
			status:      http.StatusNoContent,
			expected:    []int{http.StatusNoContent},
			wantSuccess: true,
			wantPayload: map[string]any{},
		},
		{
			name:        "unexpected status",
			status:      http.StatusNotFound,
			body:        `{"error":"not found"}`,
			wantKind:    ErrUnexpectedStatus,
			wantMessage: "Failed to get thing (resp=404 Not Found)",
		},
		{
			name:        "200 when only 201 accepted",
			status:      http.StatusOK,
			body:        `{}`,
			expected:    []int{http.StatusCreated},
			wantKind:    ErrUnexpectedStatus,
			wantMessage: "Failed to get thing (resp=200 OK)",
		},
		{
			name:        "one of several accepted",
			status:      http.StatusNotFound,
			body:        `{"error":"no such path"}`,
			expected:    []int{http.StatusOK, http.StatusNotFound},
			wantSuccess: true,
			wantPayload: map[string]any{"error": "no such path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			c := New(WithAPIURL(server.URL, true))
			resp, raw := c.do(context.Background(), request{
				method:       http.MethodGet,
				path:         "/thing",
				expected:     tt.expected,
				errorMessage: "Failed to get thing",
			})

			require.NotNil(t, resp)
			require.NotNil(t, raw)
			assert.Equal(t, tt.status, raw.StatusCode)
			assert.Equal(t, tt.status, resp.StatusCode())
			assert.Equal(t, tt.wantSuccess, resp.Success())
			if tt.wantSuccess {
				assert.NoError(t, resp.Err())
				assert.Equal(t, tt.wantPayload, resp.Payload())
				return
			}
			assert.ErrorIs(t, resp.Err(), tt.wantKind)
			assert.Equal(t, map[string]any{"error": tt.wantMessage}, resp.Payload())
		})
	}
}

func TestDo_Headers(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(WithAPIURL(server.URL, true))

	t.Run("token is added to caller headers", func(t *testing.T) {
		c.do(context.Background(), request{
			method:      http.MethodGet,
			path:        "/thing",
			accessToken: "abc",
			header: map[string]string{
				"X-Trace":       "1",
				"Authorization": "Basic ignored",
			},
			errorMessage: "Failed",
		})
		assert.Equal(t, "Bearer abc", got.Get("Authorization"))
		assert.Equal(t, "1", got.Get("X-Trace"))
	})

	t.Run("no token, no authorization", func(t *testing.T) {
		c.do(context.Background(), request{
			method:       http.MethodGet,
			path:         "/thing",
			errorMessage: "Failed",
		})
		assert.Empty(t, got.Get("Authorization"))
	})
}

func TestDo_FormAndQuery(t *testing.T) {
	var (
		gotQuery url.Values
		gotForm  url.Values
		gotType  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := New(WithAPIURL(server.URL, true))
	resp, _ := c.do(context.Background(), request{
		method:       http.MethodPost,
		path:         "/project",
		query:        url.Values{"dry_run": {"true"}},
		form:         url.Values{"name": {"my project"}, "tier_product_id": {"p-1"}},
		expected:     []int{http.StatusCreated},
		errorMessage: "Failed creating project",
	})

	require.True(t, resp.Success())
	assert.Equal(t, "true", gotQuery.Get("dry_run"))
	assert.Equal(t, "application/x-www-form-urlencoded", gotType)
	assert.Equal(t, "my project", gotForm.Get("name"))
	assert.Equal(t, "p-1", gotForm.Get("tier_product_id"))
}

func TestDo_Multipart(t *testing.T) {
	type part struct {
		field, filename, content string
	}
	var parts []part
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			b, _ := io.ReadAll(p)
			parts = append(parts, part{p.FormName(), p.FileName(), string(b)})
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := New(WithAPIURL(server.URL, true))
	resp, _ := c.do(context.Background(), request{
		method:       http.MethodPut,
		path:         "/project/p-1/file",
		form:         url.Values{"path": {"/data"}},
		files:        []formFile{{field: "file", filename: "a.sdf", content: strings.NewReader("$$$$\n")}},
		expected:     []int{http.StatusCreated},
		errorMessage: "Failed putting file",
	})

	require.True(t, resp.Success())
	assert.Equal(t, []part{
		{field: "path", content: "/data"},
		{field: "file", filename: "a.sdf", content: "$$$$\n"},
	}, parts)
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := New(WithAPIURL(server.URL, true))
	start := time.Now()
	resp, raw := c.do(context.Background(), request{
		method:       http.MethodGet,
		path:         "/slow",
		errorMessage: "Failed",
		timeout:      50 * time.Millisecond,
	})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Nil(t, raw)
	assert.ErrorIs(t, resp.Err(), ErrTransport)
	assert.ErrorIs(t, resp.Err(), context.DeadlineExceeded)
}

func TestDo_CallerCancellation(t *testing.T) {
	rt := &failingTransport{}
	c := New(WithAPIURL("http://dm.invalid", true), WithTransport(rt))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, _ := c.do(ctx, request{method: http.MethodGet, path: "/version", errorMessage: "Failed"})

	assert.ErrorIs(t, resp.Err(), ErrTransport)
}

func TestDo_Preconditions(t *testing.T) {
	c := New(WithAPIURL("http://dm.invalid", true))

	assert.Panics(t, func() {
		c.do(context.Background(), request{method: "HEAD", path: "/version"})
	})
	assert.Panics(t, func() {
		c.do(context.Background(), request{method: http.MethodGet})
	})
}
