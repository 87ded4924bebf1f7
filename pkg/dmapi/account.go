package dmapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Ping checks the Data Manager is responding by reading the account server
// namespace. Default timeout: DefaultTimeout.
func (c *Client) Ping(ctx context.Context, accessToken string, opts ...CallOption) *Response {
	if err := checkArgs(arg("access token", accessToken, required)); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/account-server/namespace",
		accessToken:  accessToken,
		errorMessage: "Failed ping",
		timeout:      o.timeout,
	})
	return resp
}

// GetVersion returns the Data Manager service version, see Version.
// Default timeout: DefaultTimeout.
func (c *Client) GetVersion(ctx context.Context, accessToken string, opts ...CallOption) *Response {
	if err := checkArgs(arg("access token", accessToken, required)); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/version",
		accessToken:  accessToken,
		errorMessage: "Failed getting version",
		timeout:      o.timeout,
	})
	return resp
}

// SetAdminState adds or removes the become-admin state of the caller's
// account, optionally impersonating another user. Only accounts with
// administrative capabilities may do this. Default timeout: DefaultTimeout.
func (c *Client) SetAdminState(ctx context.Context, accessToken string, admin bool, impersonate string, opts ...CallOption) *Response {
	if err := checkArgs(arg("access token", accessToken, required)); err != nil {
		return failed(err)
	}

	form := url.Values{"become_admin": {strconv.FormatBool(admin)}}
	if impersonate != "" {
		form.Set("impersonate", impersonate)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodPatch,
		path:         "/user/account",
		accessToken:  accessToken,
		form:         form,
		expected:     []int{http.StatusNoContent},
		errorMessage: "Failed to set the admin state",
		timeout:      o.timeout,
	})
	return resp
}
