package labbcat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// storePath returns the path of a graph store query operation.
func storePath(op string) string {
	return "api/store/" + op
}

// editStorePath returns the path of a graph store edit operation.
func editStorePath(op string) string {
	return "api/edit/store/" + op
}

// adminStorePath returns the path of a graph store administration operation.
func adminStorePath(op string) string {
	return "api/admin/store/" + op
}

// newRequest creates a new HTTP request with common headers. resource is
// relative to the server URL; params are added to the query string, with
// multi-valued parameters repeated.
func (c *Client) newRequest(ctx context.Context, method, resource string, params url.Values, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL + resource
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(reqURL, "?") {
			sep = "&"
		}
		reqURL += sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	return req, nil
}

// newFormRequest creates a new HTTP request with a URL-encoded form body.
func (c *Client) newFormRequest(ctx context.Context, method, resource string, params url.Values) (*http.Request, error) {
	req, err := c.newRequest(ctx, method, resource, nil, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return req, nil
}

// newJSONRequest creates a new HTTP request with JSON body.
func (c *Client) newJSONRequest(ctx context.Context, method, resource string, body interface{}) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := c.newRequest(ctx, method, resource, nil, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// do authorizes and sends a request. GET requests go through the retrying
// client; everything else is sent once.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	authorization, err := c.authorize(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	client := c.http
	if req.Method == http.MethodGet {
		client = c.retry
	} else {
		c.logger.Debug().Str(req.Method, req.URL.String()).Msg("request")
	}

	resp, err := client.Do(req)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, ErrServerNotRunning
		}
		return nil, err
	}
	return resp, nil
}

// call sends a request, checks the response envelope for errors, and decodes
// the model into v unless v is nil.
func (c *Client) call(req *http.Request, op string, v interface{}) (*Response, error) {
	httpResp, err := c.do(req)
	if err != nil {
		return nil, wrapTransportError(op, err)
	}
	defer httpResp.Body.Close()

	resp, err := readResponse(httpResp)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	if err := resp.Err(); err != nil {
		return resp, err
	}

	if v != nil {
		if err := resp.DecodeModel(v); err != nil {
			return resp, fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}

	return resp, nil
}

// open sends a request whose successful body is not an envelope (a file
// download, CSV export, or plain text). A non-200 response is parsed as an
// envelope and returned as an error. The caller must close the body.
func (c *Client) open(req *http.Request, op string) (*http.Response, error) {
	httpResp, err := c.do(req)
	if err != nil {
		return nil, wrapTransportError(op, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		resp, err := readResponse(httpResp)
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w", op, err)
		}
		return nil, &ResponseError{Response: resp}
	}

	return httpResp, nil
}

// get issues a GET and decodes the response model into v.
func (c *Client) get(ctx context.Context, resource string, params url.Values, op string, v interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, resource, params, nil)
	if err != nil {
		return err
	}
	_, err = c.call(req, op, v)
	return err
}

// postForm issues a form POST and decodes the response model into v.
func (c *Client) postForm(ctx context.Context, resource string, params url.Values, op string, v interface{}) error {
	req, err := c.newFormRequest(ctx, http.MethodPost, resource, params)
	if err != nil {
		return err
	}
	_, err = c.call(req, op, v)
	return err
}

// sendJSON issues a request with a JSON body and decodes the response model into v.
func (c *Client) sendJSON(ctx context.Context, method, resource string, body interface{}, op string, v interface{}) error {
	req, err := c.newJSONRequest(ctx, method, resource, body)
	if err != nil {
		return err
	}
	_, err = c.call(req, op, v)
	return err
}

// wrapTransportError prefixes err with the operation name. Sentinel errors
// that callers compare against directly are returned as they are.
func wrapTransportError(op string, err error) error {
	var vErr *VersionError
	var rErr *ResponseError
	switch {
	case errors.Is(err, ErrServerNotRunning),
		errors.Is(err, ErrCredentialsRequired),
		errors.Is(err, ErrInvalidCredentials),
		errors.As(err, &vErr),
		errors.As(err, &rErr):
		return err
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

// pageParams adds paging parameters to params.
func pageParams(params url.Values, page *Page) url.Values {
	if params == nil {
		params = url.Values{}
	}
	if page != nil {
		params.Set("pageLength", fmt.Sprint(page.Length))
		params.Set("pageNumber", fmt.Sprint(page.Number))
	}
	return params
}

// Call sends a request to any server resource and returns the parsed
// envelope. GET parameters go in the query string; POST parameters are sent
// as a form. The envelope is returned even when it reports errors, along
// with a *ResponseError.
func (c *Client) Call(ctx context.Context, method, resource string, params url.Values) (*Response, error) {
	var req *http.Request
	var err error
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = c.newRequest(ctx, method, strings.TrimPrefix(resource, "/"), params, nil)
	default:
		req, err = c.newFormRequest(ctx, method, strings.TrimPrefix(resource, "/"), params)
	}
	if err != nil {
		return nil, err
	}

	httpResp, err := c.do(req)
	if err != nil {
		return nil, wrapTransportError(method+" "+resource, err)
	}
	defer httpResp.Body.Close()

	resp, err := readResponse(httpResp)
	if err != nil {
		return nil, err
	}
	return resp, resp.Err()
}
