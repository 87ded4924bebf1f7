package dmapi

import (
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"
)

// Response is the outcome of a Data Manager call. It is either successful,
// carrying the decoded JSON body, or failed, carrying {"error": message}.
// A Response is never modified after it is returned.
type Response struct {
	success bool
	payload map[string]any
	err     *Error
	status  int
}

func succeeded(status int, payload map[string]any) *Response {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Response{success: true, payload: payload, status: status}
}

func failed(err *Error) *Response {
	return &Response{
		payload: map[string]any{"error": err.Message},
		err:     err,
		status:  err.StatusCode,
	}
}

// Success reports whether the call succeeded.
func (r *Response) Success() bool {
	return r.success
}

// Payload returns a shallow copy of the decoded body, or {"error": ...} for
// failed calls.
func (r *Response) Payload() map[string]any {
	return maps.Clone(r.payload)
}

// Err returns nil for a successful Response, otherwise a *Error.
func (r *Response) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// StatusCode is the HTTP status received, zero if none was.
func (r *Response) StatusCode() int {
	return r.status
}

// Decode copies the payload of a successful Response into v, which must be
// a pointer to a struct or map. Field names follow `json` tags and timestamp
// strings are accepted for time.Time fields.
func (r *Response) Decode(v any) error {
	if !r.success {
		return r.err
	}
	return decodePayload(r.payload, v)
}

func decodePayload(payload any, v any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(timestampHook),
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           v,
	})
	if err != nil {
		return fmt.Errorf("failed to create payload decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// timestampHook parses the timestamp strings the Data Manager emits, which
// are not consistently RFC 3339.
func timestampHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s := data.(string)
	if s == "" {
		return time.Time{}, nil
	}
	return dateparse.ParseIn(s, time.UTC)
}
