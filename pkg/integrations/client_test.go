package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/npmlens/pkg/httputil"
)

func newTestClient(server *httptest.Server, headers map[string]string, opts ...Option) *Client {
	opts = append([]Option{WithHTTPClient(server.Client()), WithRetry(2, 0)}, opts...)
	return NewClient(headers, opts...)
}

func TestNewClient(t *testing.T) {
	headers := map[string]string{"Authorization": "Bearer token"}
	client := NewClient(headers)

	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if client.headers["Authorization"] != "Bearer token" {
		t.Error("NewClient() headers not set correctly")
	}
	if client.attempts != defaultAttempts {
		t.Errorf("attempts = %d, want %d", client.attempts, defaultAttempts)
	}
	if client.breakers != nil {
		t.Error("breakers should be nil unless configured")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		ua = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := newTestClient(server, nil)

	var resp response
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
	if !strings.HasPrefix(ua, "npmlens/") {
		t.Errorf("User-Agent = %q, want npmlens/ prefix", ua)
	}
}

func TestClientGetWithHeadersOverridesDefaults(t *testing.T) {
	var custom, override string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		custom = r.Header.Get("X-Custom")
		override = r.Header.Get("X-Override")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(server, map[string]string{"X-Override": "default"})

	var resp map[string]string
	err := client.GetWithHeaders(context.Background(), server.URL,
		map[string]string{"X-Custom": "custom", "X-Override": "overridden"}, &resp)
	if err != nil {
		t.Fatalf("GetWithHeaders() error: %v", err)
	}
	if custom != "custom" {
		t.Errorf("custom header = %q, want %q", custom, "custom")
	}
	if override != "overridden" {
		t.Errorf("header = %q, want %q", override, "overridden")
	}
}

func TestClientGetStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		want      error
		wantCalls int32
	}{
		{"404 not retried", http.StatusNotFound, ErrNotFound, 1},
		{"429 retried", http.StatusTooManyRequests, ErrRateLimited, 2},
		{"500 retried", http.StatusInternalServerError, ErrUpstreamDown, 2},
		{"403 not retried", http.StatusForbidden, ErrNetwork, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server, nil)
			var resp map[string]any
			err := client.Get(context.Background(), server.URL, &resp)
			if !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want %v", err, tt.want)
			}
			var re *httputil.RetryableError
			if errors.As(err, &re) {
				t.Error("Get() should unwrap RetryableError before returning")
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestClientGetRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !resp.OK {
		t.Error("expected decoded body after retry")
	}
}

func TestClientGetMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": `))
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	var resp map[string]any
	if err := client.Get(context.Background(), server.URL, &resp); !errors.Is(err, ErrMalformed) {
		t.Errorf("Get() error = %v, want ErrMalformed", err)
	}
}

func TestClientGetBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	breakers := NewBreakers()
	client := newTestClient(server, nil, WithRetry(1, 0), WithBreakers(breakers))

	var resp map[string]any
	for range httputil.DefaultTripThreshold {
		_ = client.Get(context.Background(), server.URL, &resp)
	}
	before := calls.Load()

	err := client.Get(context.Background(), server.URL, &resp)
	if !errors.Is(err, ErrUpstreamDown) {
		t.Errorf("Get() error = %v, want ErrUpstreamDown", err)
	}
	if calls.Load() != before {
		t.Error("request should not reach the server while the breaker is open")
	}
}

func TestClientGetNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	breakers := NewBreakers()
	client := newTestClient(server, nil, WithBreakers(breakers))

	var resp map[string]any
	for range httputil.DefaultTripThreshold * 2 {
		if err := client.Get(context.Background(), server.URL, &resp); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	}
	for host, state := range breakers.State() {
		if state != "closed" {
			t.Errorf("breaker for %s = %s, want closed", host, state)
		}
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantErr    bool
		wantType   error
		isRetryErr bool
	}{
		{name: "200 OK", code: 200},
		{name: "204 No Content", code: 204},
		{name: "404 Not Found", code: 404, wantErr: true, wantType: ErrNotFound},
		{name: "429 Too Many Requests", code: 429, wantErr: true, wantType: ErrRateLimited, isRetryErr: true},
		{name: "500 Internal Server Error", code: 500, wantErr: true, wantType: ErrUpstreamDown, isRetryErr: true},
		{name: "503 Service Unavailable", code: 503, wantErr: true, wantType: ErrUpstreamDown, isRetryErr: true},
		{name: "400 Bad Request", code: 400, wantErr: true, wantType: ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus(tt.code)

			if !tt.wantErr {
				if err != nil {
					t.Errorf("checkStatus() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("checkStatus() should return error")
			}
			if tt.wantType != nil && !errors.Is(err, tt.wantType) {
				t.Errorf("checkStatus() error = %v, want %v", err, tt.wantType)
			}
			var retryErr *httputil.RetryableError
			if got := errors.As(err, &retryErr); got != tt.isRetryErr {
				t.Errorf("checkStatus() retryable = %v, want %v", got, tt.isRetryErr)
			}
		})
	}
}

func TestNormalizePkgName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "React", "react"},
		{"underscore kept", "my_package", "my_package"},
		{"trim spaces", "  react  ", "react"},
		{"scoped", " @Babel/Core ", "@babel/core"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePkgName(tt.input); got != tt.want {
				t.Errorf("NormalizePkgName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"https url", "https://github.com/user/repo", "https://github.com/user/repo"},
		{"with .git suffix", "https://github.com/user/repo.git", "https://github.com/user/repo"},
		{"git@ to https", "git@github.com:user/repo", "https://github.com/user/repo"},
		{"git:// to https", "git://github.com/user/repo", "https://github.com/user/repo"},
		{"git+ prefix", "git+https://github.com/facebook/react.git", "https://github.com/facebook/react"},
		{"ssh", "git+ssh://git@github.com/user/repo.git", "https://github.com/user/repo"},
		{"github shorthand", "github:user/repo", "https://github.com/user/repo"},
		{"with spaces", "  https://github.com/user/repo  ", "https://github.com/user/repo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRepoURL(tt.input); got != tt.want {
				t.Errorf("NormalizeRepoURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPathEscapeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"react", "react"},
		{"@babel/core", "@babel%2Fcore"},
		{"lodash.merge", "lodash.merge"},
	}
	for _, tt := range tests {
		if got := PathEscapeName(tt.input); got != tt.want {
			t.Errorf("PathEscapeName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
