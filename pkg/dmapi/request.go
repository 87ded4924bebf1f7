package dmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// request describes one call to the Data Manager API.
type request struct {
	method string
	path   string

	// errorMessage prefixes the failure message when the call fails.
	errorMessage string

	// accessToken, when set, is sent as a Bearer Authorization header.
	accessToken string

	// expected lists the acceptable status codes. Empty means 200 only.
	expected []int

	header  map[string]string
	query   url.Values
	form    url.Values
	files   []formFile
	timeout time.Duration
}

// formFile is a file part of a multipart body.
type formFile struct {
	field    string
	filename string
	content  io.Reader
}

// rawResponse is what was received, kept for callers that need more than
// the decoded JSON body.
type rawResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

var requestMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// do sends exactly one request and folds the outcome into a Response. It
// never returns a nil Response. The raw response is nil when nothing was
// received.
func (c *Client) do(ctx context.Context, r request) (*Response, *rawResponse) {
	if !slices.Contains(requestMethods, r.method) {
		panic(fmt.Sprintf("dmapi: unsupported request method %q", r.method))
	}
	if r.path == "" {
		panic("dmapi: empty request path")
	}

	apiURL, hc := c.snapshot()
	if apiURL == "" {
		return failed(newError(ErrNoAPIURL, "No API URL defined")), nil
	}

	expected := r.expected
	if len(expected) == 0 {
		expected = []int{http.StatusOK}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	body, contentType := r.body()
	req, err := http.NewRequestWithContext(ctx, r.method, apiURL+r.path, body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		c.logger.Error("failed to create request", "method", r.method, "path", r.path, "error", err)
		return failed(wrapError(ErrTransport, failureMessage(r.errorMessage, nil), err)), nil
	}

	if len(r.query) > 0 {
		req.URL.RawQuery = r.query.Encode()
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.accessToken)
	}

	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Error("request failed", "method", r.method, "path", r.path, "error", err)
		return failed(wrapError(ErrTransport, failureMessage(r.errorMessage, nil), err)), nil
	}
	defer resp.Body.Close()

	raw := &rawResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
	}
	raw.Body, err = io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("failed to read response", "method", r.method, "path", r.path, "error", err)
		e := wrapError(ErrTransport, failureMessage(r.errorMessage, raw), err)
		e.StatusCode = resp.StatusCode
		return failed(e), raw
	}

	if !slices.Contains(expected, resp.StatusCode) {
		c.logger.Warn("unexpected response status",
			"method", r.method, "path", r.path,
			"status", resp.StatusCode, "expected", expected)
		e := newError(ErrUnexpectedStatus, failureMessage(r.errorMessage, raw))
		e.StatusCode = resp.StatusCode
		return failed(e), raw
	}

	// An undecodable body is not a failure; the status already said so.
	payload := map[string]any{}
	if err := json.Unmarshal(raw.Body, &payload); err != nil {
		payload = map[string]any{}
	}
	return succeeded(resp.StatusCode, payload), raw
}

// body returns the request body and its content type, if any.
func (r request) body() (io.ReadCloser, string) {
	if len(r.files) > 0 {
		return multipartBody(r.form, r.files)
	}
	if len(r.form) > 0 {
		return io.NopCloser(strings.NewReader(r.form.Encode())), "application/x-www-form-urlencoded"
	}
	return nil, ""
}

// multipartBody streams form fields and files as multipart/form-data.
func multipartBody(form url.Values, files []formFile) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			for k, values := range form {
				for _, v := range values {
					if err := mw.WriteField(k, v); err != nil {
						return err
					}
				}
			}
			for _, f := range files {
				part, err := mw.CreateFormFile(f.field, f.filename)
				if err != nil {
					return err
				}
				if _, err := io.Copy(part, f.content); err != nil {
					return err
				}
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func failureMessage(msg string, raw *rawResponse) string {
	if raw == nil {
		return fmt.Sprintf("%s (resp=none)", msg)
	}
	return fmt.Sprintf("%s (resp=%s)", msg, raw.Status)
}
