package dmapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// JobApplicationID is the well-known Application ID of the Data Manager
// Job operator.
const JobApplicationID = "datamanagerjobs.squonk.it"

// LaunchOptions are the optional settings of StartJobInstance.
type LaunchOptions struct {
	// CallbackURL receives Job callbacks. CallbackContext and
	// GenerateCallbackToken are ignored unless it is set.
	CallbackURL string

	// CallbackContext is passed back to CallbackURL.
	CallbackContext string

	// GenerateCallbackToken asks the Data Manager for a token that some
	// operations accept in place of an access token.
	GenerateCallbackToken bool

	// Debug prevents the automatic removal of the instance. Only use it
	// when you need to.
	Debug string
}

// StartJobInstance launches a Job in a project. The latest installed Job
// operator version is looked up first; if there is none the call fails with
// ErrNoJobOperator and no instance is requested. The payload carries the
// instance_id and task_id, see StartedInstance.
// Default timeout: DefaultTimeout, for each of the two calls.
func (c *Client) StartJobInstance(ctx context.Context, accessToken, projectID, name string, spec *JobSpecification, launch LaunchOptions, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project ID", projectID, required),
		arg("name", name, required),
	); err != nil {
		return failed(err)
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return failed(wrapError(ErrInvalidArgument, "Invalid Job specification", err))
	}

	o := resolve(DefaultTimeout, opts)
	version, verr := c.latestJobOperatorVersion(ctx, accessToken, o)
	if verr != nil {
		return failed(verr)
	}

	form := url.Values{
		"application_id":      {JobApplicationID},
		"application_version": {version},
		"as_name":             {name},
		"project_id":          {projectID},
		"specification":       {string(specJSON)},
	}
	if launch.Debug != "" {
		form.Set("debug", launch.Debug)
	}
	if launch.CallbackURL != "" {
		form.Set("callback_url", launch.CallbackURL)
		if launch.CallbackContext != "" {
			form.Set("callback_context", launch.CallbackContext)
		}
		if launch.GenerateCallbackToken {
			form.Set("generate_callback_token", "true")
		}
	}

	resp, _ := c.do(ctx, request{
		method:       http.MethodPost,
		path:         "/instance",
		accessToken:  accessToken,
		form:         form,
		expected:     []int{http.StatusCreated},
		errorMessage: "Failed to start instance",
		timeout:      o.timeout,
	})
	return resp
}

// latestJobOperatorVersion returns the first version listed for the Job
// application, which is the latest.
func (c *Client) latestJobOperatorVersion(ctx context.Context, accessToken string, o callOptions) (string, *Error) {
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/application/" + JobApplicationID,
		accessToken:  accessToken,
		errorMessage: "Failed getting Job application info",
		timeout:      o.timeout,
	})
	if !resp.Success() {
		c.logger.Error("failed getting job application info", "error", resp.Err())
		if resp.err.Kind == ErrNoAPIURL {
			return "", resp.err
		}
		return "", &Error{
			Kind:       ErrJobOperatorLookup,
			Message:    "Failed getting Job operator version",
			StatusCode: resp.StatusCode(),
			cause:      resp.err,
		}
	}

	var app struct {
		Versions []string `json:"versions"`
	}
	if err := resp.Decode(&app); err != nil || len(app.Versions) == 0 {
		c.logger.Warn("no versions returned for job application info, no operator?")
		return "", newError(ErrNoJobOperator, "No Job operator installed")
	}
	return app.Versions[0], nil
}

// GetInstance returns details of an Application or Job instance, see
// Instance. Default timeout: DefaultTimeout.
func (c *Client) GetInstance(ctx context.Context, accessToken, instanceID string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("instance ID", instanceID, required),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/instance/" + url.PathEscape(instanceID),
		accessToken:  accessToken,
		errorMessage: "Failed to get instance",
		timeout:      o.timeout,
	})
	return resp
}

// GetProjectInstances lists the instances in a project.
// Default timeout: DefaultTimeout.
func (c *Client) GetProjectInstances(ctx context.Context, accessToken, projectID string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project ID", projectID, required),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/instance",
		accessToken:  accessToken,
		query:        url.Values{"project_id": {projectID}},
		errorMessage: "Failed to get project instances",
		timeout:      o.timeout,
	})
	return resp
}

// DeleteInstance deletes an instance, its container and the
// instance-specific directory created in the project root.
// Default timeout: DefaultTimeout.
func (c *Client) DeleteInstance(ctx context.Context, accessToken, instanceID string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("instance ID", instanceID, required),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodDelete,
		path:         "/instance/" + url.PathEscape(instanceID),
		accessToken:  accessToken,
		errorMessage: "Failed to delete instance",
		timeout:      o.timeout,
	})
	return resp
}

// DeleteInstanceToken deletes an instance callback token. The call is not
// authenticated. A deleted token cannot be restored.
// Default timeout: DefaultTimeout.
func (c *Client) DeleteInstanceToken(ctx context.Context, instanceID, callbackToken string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("instance ID", instanceID, required),
		arg("callback token", callbackToken, required),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodDelete,
		path:         "/instance/" + url.PathEscape(instanceID) + "/token/" + url.PathEscape(callbackToken),
		errorMessage: "Failed to delete instance token",
		timeout:      o.timeout,
	})
	return resp
}

// GetTask returns a Task and its events, see Task. eventPriorOrdinal and
// eventLimit page through the events; zero leaves them unset.
// Default timeout: DefaultTimeout.
func (c *Client) GetTask(ctx context.Context, accessToken, taskID string, eventPriorOrdinal, eventLimit int, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("task ID", taskID, required),
		arg("event prior ordinal", eventPriorOrdinal, validation.Min(0)),
		arg("event limit", eventLimit, validation.Min(0)),
	); err != nil {
		return failed(err)
	}

	query := url.Values{}
	if eventPriorOrdinal > 0 {
		query.Set("event_prior_ordinal", strconv.Itoa(eventPriorOrdinal))
	}
	if eventLimit > 0 {
		query.Set("event_limit", strconv.Itoa(eventLimit))
	}

	o := resolve(DefaultTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:       http.MethodGet,
		path:         "/task/" + url.PathEscape(taskID),
		accessToken:  accessToken,
		query:        query,
		errorMessage: "Failed to get task",
		timeout:      o.timeout,
	})
	return resp
}
