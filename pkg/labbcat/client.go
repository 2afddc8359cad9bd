package labbcat

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

const (
	// Version is the version of this client library.
	Version = "1.0.0"

	// MinimumServerVersion is the oldest LaBB-CAT server version this client
	// can talk to. Versions are compared as strings.
	MinimumServerVersion = "20210210.2032"
)

// Client is an HTTP client for the LaBB-CAT server API.
//
// A Client keeps a cookie jar, so the server session established on the first
// request is reused by every later request. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	language  string
	logger    zerolog.Logger
	pollFloor time.Duration

	// http sends requests that must not be replayed (POST, PUT, DELETE, uploads).
	http *http.Client
	// retry sends idempotent GET requests, retrying transient failures.
	retry *http.Client

	authMu        sync.Mutex
	authorized    bool
	authorization string
	username      string
	password      string
	prompt        PasswordPrompt
	minVersion    string
	serverVersion string
}

// NewClient creates a new LaBB-CAT API client for the server at baseURL,
// e.g. "https://labbcat.example.org/labbcat/".
//
// Optional options:
//   - WithCredentials: username and password for HTTP Basic authentication
//   - WithPasswordPrompt: ask interactively when credentials are refused
//   - WithLanguage: Accept-Language for server messages (default: from $LANG)
//   - WithTimeout: per-request timeout (default: 3m)
//   - WithRetries: GET retries on transient failures (default: 2)
//   - WithLogger: zerolog logger (default: disabled)
//
// Example:
//
//	client, err := labbcat.NewClient("https://labbcat.example.org/labbcat",
//	    labbcat.WithCredentials("demo", "demo"),
//	)
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if baseURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL:   u.String(),
		userAgent: cfg.userAgent,
		language:  cfg.language,
		logger:    cfg.logger,
		pollFloor: cfg.pollFloor,
		http: &http.Client{
			Timeout:   cfg.timeout,
			Transport: cfg.transport,
			Jar:       jar,
		},
		retry:      newRetryClient(cfg, jar),
		username:   cfg.username,
		password:   cfg.password,
		prompt:     cfg.prompt,
		minVersion: cfg.minVersion,
	}, nil
}

// newRetryClient builds the retrying client used for GET requests.
func newRetryClient(cfg *clientConfig, jar http.CookieJar) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.retries
	retryClient.HTTPClient.Timeout = cfg.timeout
	if cfg.transport != nil {
		retryClient.HTTPClient.Transport = cfg.transport
	}
	retryClient.Logger = stdlog.New(io.Discard, "", stdlog.LstdFlags)

	logger := cfg.logger
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		logger.Debug().
			Str(req.Method, req.URL.String()).
			Int("attempt", attempt).
			Msg("request")
	}
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil && isConnectionRefused(err) {
			return false, err
		}
		// the server reports application errors with 500 and an envelope
		if resp != nil && resp.StatusCode == http.StatusInternalServerError {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	std := retryClient.StandardClient()
	std.Jar = jar
	return std
}

// BaseURL returns the server URL, always ending in "/".
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login performs the authorization handshake now rather than on the first
// request, and returns the server's version.
func (c *Client) Login(ctx context.Context) (string, error) {
	if _, err := c.authorize(ctx); err != nil {
		return "", err
	}
	return c.ServerVersion(), nil
}

// ServerVersion returns the version reported by the server during the
// handshake, or "" if no request has been made yet.
func (c *Client) ServerVersion() string {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.serverVersion
}

// authorize runs the handshake once and returns the Authorization header
// value to send, which is "" if the server needs no login.
func (c *Client) authorize(ctx context.Context) (string, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if c.authorized {
		return c.authorization, nil
	}

	status, resp, err := c.probe(ctx, "")
	if err != nil {
		return "", err
	}

	authorization := ""
	if status == http.StatusUnauthorized {
		username, password := c.username, c.password
		for {
			if username == "" || password == "" {
				if c.prompt == nil {
					return "", ErrCredentialsRequired
				}
				username, password, err = c.prompt(username)
				if err != nil {
					return "", err
				}
			}

			authorization = basicAuth(username, password)
			status, resp, err = c.probe(ctx, authorization)
			if err != nil {
				return "", err
			}
			if status != http.StatusUnauthorized {
				c.username, c.password = username, password
				break
			}

			c.logger.Debug().Str("username", username).Msg("credentials refused")
			if c.prompt == nil {
				return "", ErrInvalidCredentials
			}
			password = ""
		}
	}

	if status != http.StatusOK {
		if err := resp.Err(); err != nil {
			return "", err
		}
	}

	if resp.Version == "" || resp.Version < c.minVersion {
		return "", &VersionError{Version: resp.Version, Minimum: c.minVersion}
	}

	c.authorized = true
	c.authorization = authorization
	c.serverVersion = resp.Version
	return authorization, nil
}

// probe requests the store root, which returns an envelope carrying the
// server version.
func (c *Client) probe(ctx context.Context, authorization string) (int, *Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, storePath(""), nil, nil)
	if err != nil {
		return 0, nil, err
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	httpResp, err := c.retry.Do(req)
	if err != nil {
		if isConnectionRefused(err) {
			return 0, nil, ErrServerNotRunning
		}
		return 0, nil, fmt.Errorf("connect failed: %w", err)
	}
	defer httpResp.Body.Close()

	// a 401 body is usually the container's HTML login page
	if httpResp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, httpResp.Body)
		return httpResp.StatusCode, nil, nil
	}

	resp, err := readResponse(httpResp)
	if err != nil {
		return 0, nil, err
	}
	return httpResp.StatusCode, resp, nil
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// defaultLanguage derives an Accept-Language value from $LANG,
// e.g. "en_NZ.UTF-8" becomes "en-NZ".
func defaultLanguage() string {
	lang := os.Getenv("LANG")
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" || lang == "C" || lang == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(lang, "_", "-")
}
