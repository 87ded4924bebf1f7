package dmapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/afero"
)

// PutUnmanagedProjectFiles uploads local files to projectPath in a project.
// Leading directories are stripped, so "dir/a.txt" arrives as
// projectPath/a.txt.
//
// Unless force is set, files whose names already exist on projectPath are
// skipped. Every local file must exist, skipped or not. Files are sent one
// at a time in the order given and the first failure is returned at once;
// files already sent stay sent. Default timeout, per file:
// DefaultUploadTimeout.
func (c *Client) PutUnmanagedProjectFiles(ctx context.Context, accessToken, projectID string, localFiles []string, projectPath string, force bool, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project ID", projectID, required),
		arg("project files", localFiles, required, validation.Each(required)),
		arg("project path", projectPath, pathRules...),
	); err != nil {
		return failed(err)
	}

	if apiURL, _ := c.APIURL(); apiURL == "" {
		return failed(newError(ErrNoAPIURL, "No API URL defined"))
	}

	existing := map[string]bool{}
	if force {
		c.logger.Warn("putting files", "force", true, "project_id", projectID)
	} else {
		resp, raw := c.do(ctx, request{
			method:      http.MethodGet,
			path:        "/file",
			accessToken: accessToken,
			query: url.Values{
				"project_id": {projectID},
				"path":       {projectPath},
			},
			expected:     []int{http.StatusOK, http.StatusNotFound},
			errorMessage: "Failed getting existing project files",
			timeout:      DefaultTimeout,
		})
		if !resp.Success() {
			return resp
		}
		if raw.StatusCode == http.StatusOK {
			var listing ProjectFileList
			if err := resp.Decode(&listing); err != nil {
				return failed(wrapError(ErrUnexpectedStatus, "Failed getting existing project files (unreadable listing)", err))
			}
			for _, f := range listing.Files {
				existing[f.FileName] = true
			}
		}
	}

	o := resolve(DefaultUploadTimeout, opts)
	for _, localFile := range localFiles {
		info, err := c.fs.Stat(localFile)
		if err != nil || info.IsDir() {
			return failed(newError(ErrLocalFile, fmt.Sprintf("No such file (%s)", localFile)))
		}
		name := filepath.Base(localFile)
		if existing[name] {
			c.logger.Debug("skipping existing file", "file", name, "project_id", projectID, "path", projectPath)
			continue
		}
		if resp := c.putUnmanagedProjectFile(ctx, accessToken, projectID, localFile, projectPath, o); !resp.Success() {
			return resp
		}
	}

	return succeeded(0, nil)
}

func (c *Client) putUnmanagedProjectFile(ctx context.Context, accessToken, projectID, localFile, projectPath string, o callOptions) *Response {
	f, err := c.fs.Open(localFile)
	if err != nil {
		return failed(wrapError(ErrLocalFile, fmt.Sprintf("Failed to open file (%s)", localFile), err))
	}
	defer f.Close()

	name := filepath.Base(localFile)
	resp, _ := c.do(ctx, request{
		method:       http.MethodPut,
		path:         "/project/" + url.PathEscape(projectID) + "/file",
		accessToken:  accessToken,
		form:         url.Values{"path": {projectPath}},
		files:        []formFile{{field: "file", filename: name, content: f}},
		expected:     []int{http.StatusCreated},
		errorMessage: fmt.Sprintf("Failed putting file %s/%s", projectPath, localFile),
		timeout:      o.timeout,
	})
	if !resp.Success() {
		c.logger.Warn("failed putting file",
			"file", localFile, "path", projectPath, "project_id", projectID, "status", resp.StatusCode())
	}
	return resp
}

// DeleteUnmanagedProjectFiles deletes files from projectPath in a project,
// one at a time in the order given. The first failure is returned at once
// and the remaining files are left alone. Default timeout, per file:
// DefaultTimeout.
func (c *Client) DeleteUnmanagedProjectFiles(ctx context.Context, accessToken, projectID string, projectFiles []string, projectPath string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project ID", projectID, required),
		arg("project files", projectFiles, validation.Each(required)),
		arg("project path", projectPath, pathRules...),
	); err != nil {
		return failed(err)
	}

	if apiURL, _ := c.APIURL(); apiURL == "" {
		return failed(newError(ErrNoAPIURL, "No API URL defined"))
	}

	o := resolve(DefaultTimeout, opts)
	for _, file := range projectFiles {
		resp, _ := c.do(ctx, request{
			method:      http.MethodDelete,
			path:        "/file",
			accessToken: accessToken,
			query: url.Values{
				"project_id": {projectID},
				"path":       {projectPath},
				"file":       {file},
			},
			expected:     []int{http.StatusNoContent},
			errorMessage: "Failed to delete project file",
			timeout:      o.timeout,
		})
		if !resp.Success() {
			return resp
		}
	}

	return succeeded(0, nil)
}

// ListProjectFiles lists the files on a project path, see ProjectFileList.
// Default timeout: DefaultListTimeout.
func (c *Client) ListProjectFiles(ctx context.Context, accessToken, projectID, projectPath string, includeHidden bool, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project ID", projectID, required),
		arg("project path", projectPath, pathRules...),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultListTimeout, opts)
	resp, _ := c.do(ctx, request{
		method:      http.MethodGet,
		path:        "/file",
		accessToken: accessToken,
		query: url.Values{
			"project_id":     {projectID},
			"path":           {projectPath},
			"include_hidden": {strconv.FormatBool(includeHidden)},
		},
		errorMessage: "Failed to list project files",
		timeout:      o.timeout,
	})
	return resp
}

// GetUnmanagedProjectFile downloads projectFile from projectPath in a
// project and writes its bytes, unchanged, to localFile.
// Default timeout: DefaultTransferTimeout.
func (c *Client) GetUnmanagedProjectFile(ctx context.Context, accessToken, projectID, projectFile, localFile, projectPath string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("access token", accessToken, required),
		arg("project ID", projectID, required),
		arg("project file", projectFile, required),
		arg("local file", localFile, required),
		arg("project path", projectPath, pathRules...),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTransferTimeout, opts)
	resp, raw := c.do(ctx, request{
		method:      http.MethodGet,
		path:        "/project/" + url.PathEscape(projectID) + "/file",
		accessToken: accessToken,
		query: url.Values{
			"path": {projectPath},
			"file": {projectFile},
		},
		errorMessage: "Failed to get file",
		timeout:      o.timeout,
	})
	return c.saveDownload(resp, raw, localFile)
}

// GetUnmanagedProjectFileWithToken is GetUnmanagedProjectFile authorised by
// an instance callback token instead of a user access token. Callback tokens
// expire and can be deleted, so prefer GetUnmanagedProjectFile when an
// access token is at hand. Default timeout: DefaultTransferTimeout.
func (c *Client) GetUnmanagedProjectFileWithToken(ctx context.Context, callbackToken, projectID, projectFile, localFile, projectPath string, opts ...CallOption) *Response {
	if err := checkArgs(
		arg("callback token", callbackToken, required),
		arg("project ID", projectID, required),
		arg("project file", projectFile, required),
		arg("local file", localFile, required),
		arg("project path", projectPath, pathRules...),
	); err != nil {
		return failed(err)
	}

	o := resolve(DefaultTransferTimeout, opts)
	resp, raw := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/project/" + url.PathEscape(projectID) + "/file-with-token",
		query: url.Values{
			"path":  {projectPath},
			"file":  {projectFile},
			"token": {callbackToken},
		},
		errorMessage: "Failed to get file",
		timeout:      o.timeout,
	})
	return c.saveDownload(resp, raw, localFile)
}

func (c *Client) saveDownload(resp *Response, raw *rawResponse, localFile string) *Response {
	if !resp.Success() {
		return resp
	}
	if err := afero.WriteFile(c.fs, localFile, raw.Body, 0o644); err != nil {
		c.logger.Error("failed to write downloaded file", "file", localFile, "error", err)
		return failed(wrapError(ErrLocalFile, fmt.Sprintf("Failed to write file (%s)", localFile), err))
	}
	return resp
}
