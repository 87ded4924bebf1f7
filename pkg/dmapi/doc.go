// Package dmapi provides simplified access to the Squonk Data Manager API:
// Projects, Files, Instances (Jobs and Applications), Tasks and Jobs.
//
// # Overview
//
// Every operation is a method on Client and returns a *Response, which is
// either successful, carrying the decoded JSON body, or failed, carrying
// {"error": message} and a *Error from Response.Err. Failures never escape
// as panics: unreachable servers, timeouts and unexpected status codes all
// come back as failed Responses, and the caller decides whether to retry.
// No operation retries on its own.
//
// Arguments are checked before anything is sent. A missing access token or
// a project path that does not begin with "/" fails with ErrInvalidArgument
// and no request is made. The same applies when no API URL is configured
// (ErrNoAPIURL).
//
// # Configuration
//
// The API URL is read from SQUONK_API_URL, typically
// "https://example.com/data-manager-api". It can be replaced at any time
// with Client.SetAPIURL, which also controls TLS certificate verification.
// Config and LoadConfig read the same settings, plus Keycloak credentials,
// from an HCL file.
//
// # Access tokens
//
// Operations take a bearer access token issued by Keycloak. Client.GetAccessToken
// performs a password grant and, when given the previous token, hands it
// back unchanged while it is correctly signed and has at least a minute
// left. Pass the previous token on every call in polling loops to avoid a
// token request per iteration:
//
//	client := dmapi.New(dmapi.WithLogger(logger))
//
//	token, err := client.GetAccessToken(ctx, dmapi.TokenRequest{
//	    KeycloakURL: "https://example.com/auth",
//	    Realm:       "squonk",
//	    ClientID:    "data-manager-api",
//	    Username:    user,
//	    Password:    password,
//	    PriorToken:  token,
//	})
//	if err != nil {
//	    return err
//	}
//
//	resp := client.GetVersion(ctx, token)
//	if !resp.Success() {
//	    return resp.Err()
//	}
//	var v dmapi.Version
//	if err := resp.Decode(&v); err != nil {
//	    return err
//	}
//
// # Concurrency
//
// Client methods block until every request they make has completed or one
// has failed. They may be called from many goroutines; the API URL, the TLS
// setting and the cached realm key are the only shared state and are
// guarded internally. Multi-file uploads and deletes process files one at a
// time, in order.
package dmapi
