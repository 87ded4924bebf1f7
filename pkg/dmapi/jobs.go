package dmapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// GetAvailableJobs returns a summary of the Jobs that can be run.
// Default timeout: DefaultTimeout.
func (c *Client) GetAvailableJobs(ctx context.Context, accessToken string, opts ...CallOption) *Response {
	if err := checkArgs(arg("access token", accessToken, required)); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/job",
		accessToken:  accessToken,
		errorMessage: "Failed to get available jobs",
		timeout:      o.timeout,
	})
	return resp
}

// GetJob returns a Job by its numeric record ID, see Job.
// Default timeout: DefaultTimeout.
func (c *Client) GetJob(ctx context.Context, accessToken string, jobID int, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("job ID", jobID, required, validation.Min(1)),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/job/" + strconv.Itoa(jobID),
		accessToken:  accessToken,
		errorMessage: "Failed to get job",
		timeout:      o.timeout,
	})
	return resp
}

// GetJobByName returns a Job by collection, name and version, for example
// "im-test", "nop", "1.0.0". Default timeout: DefaultTimeout.
func (c *Client) GetJobByName(ctx context.Context, accessToken, collection, name, version string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("job collection", collection, required),
		arg("job name", name, required),
		arg("job version", version, required),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:      http.MethodGet,
		path:        "/job/get-by-name",
		accessToken: accessToken,
		query: url.Values{
			"collection": {collection},
			"name":       {name},
			"version":    {version},
		},
		errorMessage: "Failed to get job",
		timeout:      o.timeout,
	})
	return resp
}
