package labbcat

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// Response is the standard envelope returned by LaBB-CAT API calls:
//
//	{"title":"...", "version":"...", "code":0, "errors":[], "messages":[], "model":...}
type Response struct {
	// HTTPStatus is the HTTP status code, or -1 if the envelope was parsed
	// without an HTTP exchange.
	HTTPStatus int
	Title      string
	Version    string
	// Code is the envelope's numeric code, or -1 if absent.
	Code     int
	Errors   []string
	Messages []string
	Model    json.RawMessage
	// Raw is the unparsed response body.
	Raw string
}

type envelope struct {
	Title    string          `json:"title"`
	Version  string          `json:"version"`
	Code     *int            `json:"code"`
	Errors   []string        `json:"errors"`
	Messages []string        `json:"messages"`
	Model    json.RawMessage `json:"model"`
}

// ParseResponse parses a response body. It never fails: an empty or non-JSON
// body is recorded as an error in the returned envelope, to be reported by Err.
func ParseResponse(status int, body []byte) *Response {
	r := &Response{HTTPStatus: status, Code: -1, Raw: string(body)}

	if len(bytes.TrimSpace(body)) == 0 {
		r.Errors = []string{"Empty response from server."}
		return r
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		r.Errors = []string{"Response not JSON: " + r.Raw}
		return r
	}

	r.Title = env.Title
	r.Version = env.Version
	if env.Code != nil {
		r.Code = *env.Code
	}
	r.Errors = env.Errors
	r.Messages = env.Messages
	r.Model = env.Model
	return r
}

// readResponse reads and parses an HTTP response body.
func readResponse(resp *http.Response) (*Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return ParseResponse(resp.StatusCode, body), nil
}

// Err returns a *ResponseError if the envelope has errors, a code greater
// than zero, or a known HTTP status other than 200.
func (r *Response) Err() error {
	if len(r.Errors) > 0 || r.Code > 0 || (r.HTTPStatus > 0 && r.HTTPStatus != http.StatusOK) {
		return &ResponseError{Response: r}
	}
	return nil
}

// IsModelNull returns true if the envelope has no model, or a JSON null one.
func (r *Response) IsModelNull() bool {
	trimmed := bytes.TrimSpace(r.Model)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeModel unmarshals the model into v. A null model leaves v untouched.
func (r *Response) DecodeModel(v interface{}) error {
	if r.IsModelNull() {
		return nil
	}
	if err := json.Unmarshal(r.Model, v); err != nil {
		return fmt.Errorf("failed to decode response model: %w", err)
	}
	return nil
}
