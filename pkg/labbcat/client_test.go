package labbcat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testVersion = "20250430.1200"

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantURL string
		wantErr string
	}{
		{
			name:    "missing url",
			url:     "",
			wantErr: "server URL is required",
		},
		{
			name:    "bad scheme",
			url:     "ftp://example.org/labbcat",
			wantErr: "scheme must be http or https",
		},
		{
			name:    "adds trailing slash",
			url:     "https://example.org/labbcat",
			wantURL: "https://example.org/labbcat/",
		},
		{
			name:    "drops query",
			url:     "http://localhost:8080/labbcat/?x=1",
			wantURL: "http://localhost:8080/labbcat/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url)
			if tt.wantErr != "" {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.wantErr)
					return
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.BaseURL() != tt.wantURL {
				t.Errorf("expected base URL %q, got %q", tt.wantURL, client.BaseURL())
			}
		})
	}
}

func TestLoginWithoutAuthentication(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	client := newTestClient(t, server)
	version, err := client.Login(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != testVersion {
		t.Errorf("expected version %s, got %s", testVersion, version)
	}
}

func TestLoginWithCredentials(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid credentials", username: "demo", password: "demo"},
		{name: "invalid credentials", username: "demo", password: "wrong", wantErr: ErrInvalidCredentials},
		{name: "no credentials", wantErr: ErrCredentialsRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newAuthServer(t, "demo", "demo")
			defer server.Close()

			client := newTestClient(t, server, WithCredentials(tt.username, tt.password))
			_, err := client.Login(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				if !IsUnauthorized(err) {
					t.Errorf("expected IsUnauthorized to be true for %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoginPromptsForPassword(t *testing.T) {
	server := newAuthServer(t, "demo", "secret")
	defer server.Close()

	var prompts int
	prompt := func(username string) (string, string, error) {
		prompts++
		if prompts == 1 {
			return "demo", "wrong", nil
		}
		return "demo", "secret", nil
	}

	client := newTestClient(t, server, WithPasswordPrompt(prompt))
	if _, err := client.Login(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompts != 2 {
		t.Errorf("expected 2 prompts, got %d", prompts)
	}
}

func TestLoginPromptCancelled(t *testing.T) {
	server := newAuthServer(t, "demo", "secret")
	defer server.Close()

	prompt := func(string) (string, string, error) {
		return "", "", ErrPromptCancelled
	}

	client := newTestClient(t, server, WithPasswordPrompt(prompt))
	_, err := client.Login(context.Background())
	if !errors.Is(err, ErrPromptCancelled) {
		t.Errorf("expected ErrPromptCancelled, got %v", err)
	}
}

func TestLoginVersionTooOld(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "20190101.0000", nil)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.Login(context.Background())
	if !IsVersionMismatch(err) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	var vErr *VersionError
	errors.As(err, &vErr)
	if vErr.Minimum != MinimumServerVersion {
		t.Errorf("expected minimum %s, got %s", MinimumServerVersion, vErr.Minimum)
	}
}

func TestServerNotRunning(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(url, WithRetries(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = client.ID(context.Background())
	if !IsServerNotRunning(err) {
		t.Errorf("expected server not running, got %v", err)
	}
}

func TestHandshakeRunsOnce(t *testing.T) {
	var handshakes int32
	server := httptest.NewServer(countHandshakes(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/store/" {
			writeModel(w, nil)
			return
		}
		writeModel(w, "labbcat-test")
	}), &handshakes))
	defer server.Close()

	client := newTestClient(t, server)
	for i := 0; i < 3; i++ {
		if _, err := client.ID(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&handshakes); got != 1 {
		t.Errorf("expected 1 handshake, got %d", got)
	}
}

func TestRequestHeaders(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "labbcat-test/1.0" {
			t.Errorf("expected User-Agent labbcat-test/1.0, got %s", got)
		}
		if got := r.Header.Get("Accept-Language"); got != "es-AR" {
			t.Errorf("expected Accept-Language es-AR, got %s", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("expected Accept application/json, got %s", got)
		}
		writeModel(w, []string{"orthography"})
	})
	defer server.Close()

	client := newTestClient(t, server, WithUserAgent("labbcat-test/1.0"), WithLanguage("es-AR"))
	if _, err := client.LayerIDs(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultLanguage(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"en_NZ.UTF-8", "en-NZ"},
		{"es_AR", "es-AR"},
		{"de_DE@euro", "de-DE"},
		{"C", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			t.Setenv("LANG", tt.lang)
			if got := defaultLanguage(); got != tt.want {
				t.Errorf("defaultLanguage() with LANG=%q = %q, want %q", tt.lang, got, tt.want)
			}
		})
	}
}

// newTestServer starts a server that answers the handshake request on
// /api/store/ and passes every other request to handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/store/" {
			writeEnvelope(w, http.StatusOK, testVersion, nil)
			return
		}
		if handler == nil {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
}

// newAuthServer starts a server that requires HTTP Basic authentication.
func newAuthServer(t *testing.T, username, password string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != username || pass != password {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("<html><body>Unauthorized</body></html>"))
			return
		}
		writeEnvelope(w, http.StatusOK, testVersion, nil)
	}))
}

func countHandshakes(next http.Handler, handshakes *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/store/" {
			atomic.AddInt32(handshakes, 1)
		}
		next.ServeHTTP(w, r)
	})
}

// newTestClient creates a client for the test server that does not retry and
// polls quickly.
func newTestClient(t *testing.T, server *httptest.Server, opts ...ClientOption) *Client {
	t.Helper()

	opts = append([]ClientOption{
		WithRetries(0),
		WithTimeout(10 * time.Second),
		WithDefaultPollInterval(10 * time.Millisecond),
	}, opts...)
	client, err := NewClient(server.URL+"/", opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

// writeEnvelope writes a response envelope with the given model.
func writeEnvelope(w http.ResponseWriter, status int, version string, model interface{}, errs ...string) {
	if errs == nil {
		errs = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"title":    "LaBB-CAT",
		"version":  version,
		"code":     0,
		"errors":   errs,
		"messages": []string{},
		"model":    model,
	})
}

func writeModel(w http.ResponseWriter, model interface{}) {
	writeEnvelope(w, http.StatusOK, testVersion, model)
}

func writeError(w http.ResponseWriter, status int, errs ...string) {
	writeEnvelope(w, status, testVersion, nil, errs...)
}

func TestCall(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path != "/api/store/getLayerIds" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			writeModel(w, []string{"word", "turn"})
		case http.MethodPost:
			r.ParseForm()
			if r.PostForm.Get("id") != "nope.eaf" {
				t.Errorf("unexpected form %v", r.PostForm)
			}
			writeError(w, http.StatusNotFound, "Transcript not found: nope.eaf")
		}
	})
	defer server.Close()

	client := newTestClient(t, server)

	resp, err := client.Call(context.Background(), http.MethodGet, "/api/store/getLayerIds", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Model) != `["word","turn"]` {
		t.Errorf("unexpected model %s", resp.Model)
	}

	resp, err = client.Call(context.Background(), http.MethodPost, "api/edit/store/deleteTranscript",
		url.Values{"id": {"nope.eaf"}})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if resp == nil || len(resp.Errors) != 1 {
		t.Errorf("expected the envelope with the error, got %+v", resp)
	}
}

func TestSessionCookiePersists(t *testing.T) {
	var requests, withCookie int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/store/" {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc123", Path: "/"})
			writeEnvelope(w, http.StatusOK, testVersion, nil)
			return
		}
		atomic.AddInt32(&requests, 1)
		if cookie, err := r.Cookie("JSESSIONID"); err == nil && cookie.Value == "abc123" {
			atomic.AddInt32(&withCookie, 1)
		}
		writeModel(w, "labbcat-demo")
	}))
	defer server.Close()

	client := newTestClient(t, server)
	ctx := context.Background()

	if _, err := client.ID(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.DeleteTranscript(ctx, "old.eaf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
	if got := atomic.LoadInt32(&withCookie); got != 2 {
		t.Errorf("expected the session cookie on both GET and POST, got it on %d", got)
	}
}

func TestRetryPolicy(t *testing.T) {
	tests := []struct {
		name         string
		post         bool
		statuses     []int
		wantAttempts int32
		wantErr      bool
	}{
		{name: "GET retries 503", statuses: []int{http.StatusServiceUnavailable, http.StatusOK}, wantAttempts: 2},
		{name: "GET does not retry 500", statuses: []int{http.StatusInternalServerError}, wantAttempts: 1, wantErr: true},
		{name: "POST is sent once", post: true, statuses: []int{http.StatusServiceUnavailable}, wantAttempts: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&attempts, 1)
				status := http.StatusOK
				if int(n) <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				if status == http.StatusOK {
					writeModel(w, "ok")
					return
				}
				w.Header().Set("Retry-After", "0")
				writeError(w, status, "Server busy")
			})
			defer server.Close()

			client := newTestClient(t, server, WithRetries(2))
			ctx := context.Background()

			var err error
			if tt.post {
				err = client.DeleteTranscript(ctx, "old.eaf")
			} else {
				var id string
				id, err = client.ID(ctx)
				if err == nil && id != "ok" {
					t.Errorf("expected id %q, got %q", "ok", id)
				}
			}

			if tt.wantErr && err == nil {
				t.Errorf("expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("expected %d attempts, got %d", tt.wantAttempts, got)
			}
		})
	}
}
