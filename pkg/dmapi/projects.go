package dmapi

import (
	"context"
	"net/http"
	"net/url"
)

// TestProductID is an Account Server product ID that does not exist but
// which the Data Manager accepts from administrative users, for testing.
const TestProductID = "product-11111111-1111-1111-1111-111111111111"

// CreateProject creates a project. tierProductID is an Account Server
// product; administrators may use TestProductID. The payload carries the
// new project_id. Default timeout: DefaultTimeout.
func (c *Client) CreateProject(ctx context.Context, accessToken, name, tierProductID string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project name", name, required),
		arg("tier product ID", tierProductID, required),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/project",
		accessToken: accessToken,
		form: url.Values{
			"tier_product_id": {tierProductID},
			"name":            {name},
		},
		expected:     []int{http.StatusCreated},
		errorMessage: "Failed creating project",
		timeout:      o.timeout,
	})
	return resp
}

// DeleteProject deletes a project. Default timeout: DefaultTimeout.
func (c *Client) DeleteProject(ctx context.Context, accessToken, projectID string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project ID", projectID, required),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodDelete,
		path:         "/project/" + url.PathEscape(projectID),
		accessToken:  accessToken,
		errorMessage: "Failed deleting project",
		timeout:      o.timeout,
	})
	return resp
}

// GetAvailableProjects lists the projects available to the caller, see
// ProjectList. Default timeout: DefaultTimeout.
func (c *Client) GetAvailableProjects(ctx context.Context, accessToken string, opts ...CallOption) *Response {
	if err := checkArgs(arg("access token", accessToken, required)); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/project",
		accessToken:  accessToken,
		errorMessage: "Failed to get projects",
		timeout:      o.timeout,
	})
	return resp
}

// GetProject returns details of one project, see Project.
// Default timeout: DefaultTimeout.
func (c *Client) GetProject(ctx context.Context, accessToken, projectID string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project ID", projectID, required),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/project/" + url.PathEscape(projectID),
		accessToken:  accessToken,
		errorMessage: "Failed to get project",
		timeout:      o.timeout,
	})
	return resp
}
