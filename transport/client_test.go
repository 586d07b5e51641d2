// ABOUTME: Tests for the hooked HTTP transport
// ABOUTME: Uses httptest to verify URL resolution, headers, error mapping, hooks and replay

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woragis/woragis-posts-frontend/apierror"
	"github.com/woragis/woragis-posts-frontend/logger"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	c, err := New(baseURL, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestDo_ResolvesURLAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/posts" {
			t.Errorf("expected path /api/v1/posts, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("expected page=2, got %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Client") != "postsctl" {
			t.Errorf("expected default header, got %q", r.Header.Get("X-Client"))
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("expected request ID header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": map[string]string{"id": "p1"}})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/api/v1/", WithHeader("X-Client", "postsctl"))
	req, _ := NewRequest(http.MethodGet, "/posts", nil)
	req.Query = url.Values{"page": {"2"}}

	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := DecodeData[map[string]string](resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["id"] != "p1" {
		t.Errorf("expected id p1, got %v", data)
	}
}

func TestDo_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		kind    error
		message string
	}{
		{http.StatusNotFound, `{"success":false,"message":"Post not found"}`, apierror.ErrNotFound, "Post not found"},
		{http.StatusUnauthorized, `{"success":false,"error":"token expired"}`, apierror.ErrAuthRejected, "token expired"},
		{http.StatusInternalServerError, ``, apierror.ErrRequestFailed, "Request failed with status code 500"},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			io.WriteString(w, tt.body)
		}))

		c := newTestClient(t, server.URL)
		req, _ := NewRequest(http.MethodGet, "/posts/1", nil)
		_, err := c.Do(context.Background(), req)
		server.Close()

		if !errors.Is(err, tt.kind) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.kind, err)
		}
		if got := apierror.Message(err); got != tt.message {
			t.Errorf("status %d: expected message %q, got %q", tt.status, tt.message, got)
		}
	}
}

func TestDo_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	c := newTestClient(t, baseURL)
	req, _ := NewRequest(http.MethodGet, "/posts", nil)
	_, err := c.Do(context.Background(), req)

	if !errors.Is(err, apierror.ErrNetworkFailure) {
		t.Errorf("expected network failure, got %v", err)
	}
}

func TestDo_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithTimeout(20*time.Millisecond))
	req, _ := NewRequest(http.MethodGet, "/slow", nil)
	_, err := c.Do(context.Background(), req)

	if !errors.Is(err, apierror.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if apierror.Message(err) != "request timed out" {
		t.Errorf("expected timeout message, got %q", apierror.Message(err))
	}
}

func TestRequestHook_RewritesAndAborts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer abc" {
			t.Errorf("expected hook-attached authorization, got %q", r.Header.Get("Authorization"))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.AddRequestHook(func(ctx context.Context, req *Request) error {
		if req.Path == "/blocked" {
			return errors.New("blocked by hook")
		}
		req.Header.Set("Authorization", "Bearer abc")
		return nil
	})

	req, _ := NewRequest(http.MethodGet, "/ok", nil)
	if _, err := c.Do(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ = NewRequest(http.MethodGet, "/blocked", nil)
	if _, err := c.Do(context.Background(), req); err == nil {
		t.Error("expected hook error, got nil")
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 network call, got %d", calls)
	}
}

func TestResponseHook_ReplaySubstitutesOutcome(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"title":"hello"}` {
			t.Errorf("expected replayed body, got %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"data":{"title":"hello"}}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.AddResponseHook(func(ctx context.Context, req *Request, resp *Response, err error, replay Replay) (*Response, error) {
		if err != nil || resp.StatusCode != http.StatusUnauthorized || req.Retried {
			return resp, err
		}
		retry := req.Clone()
		retry.Retried = true
		return replay(ctx, retry)
	})

	req, _ := NewRequest(http.MethodPost, "/posts", map[string]string{"title": "hello"})
	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201 after replay, got %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 network calls, got %d", calls)
	}
}

func TestResponseHook_SeesNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	c := newTestClient(t, baseURL)
	var sawErr error
	c.AddResponseHook(func(ctx context.Context, req *Request, resp *Response, err error, replay Replay) (*Response, error) {
		sawErr = err
		return resp, err
	})

	req, _ := NewRequest(http.MethodGet, "/posts", nil)
	c.Do(context.Background(), req)

	if !errors.Is(sawErr, apierror.ErrNetworkFailure) {
		t.Errorf("expected hook to observe network failure, got %v", sawErr)
	}
}

func TestWithCredentials_SendsCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("refreshToken")
		if err != nil || ck.Value != "r-1" {
			t.Errorf("expected refreshToken cookie, got %v (%v)", ck, err)
		}
	}))
	defer server.Close()

	jar, _ := cookiejar.New(nil)
	u, _ := url.Parse(server.URL)
	jar.SetCookies(u, []*http.Cookie{{Name: "refreshToken", Value: "r-1", Path: "/"}})

	c := newTestClient(t, server.URL, WithCredentials(jar))
	req, _ := NewRequest(http.MethodPost, "/auth/refresh", nil)
	if _, err := c.Do(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewMultipartRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("expected multipart content type, got %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart: %v", err)
			return
		}
		if r.FormValue("platformId") != "devto" {
			t.Errorf("expected platformId devto, got %q", r.FormValue("platformId"))
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected file part: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "cover.png" || string(data) != "PNGDATA" {
			t.Errorf("unexpected file %s %q", hdr.Filename, data)
		}
	}))
	defer server.Close()

	req, err := NewMultipartRequest(http.MethodPost, "/publications/1/media",
		map[string]string{"platformId": "devto", "mediaType": "image"},
		MultipartFile{Field: "file", Filename: "cover.png", Content: []byte("PNGDATA")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := newTestClient(t, server.URL)
	if _, err := c.Do(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestClone(t *testing.T) {
	req, _ := NewRequest(http.MethodPatch, "/posts/1", map[string]string{"title": "a"})
	req.Query = url.Values{"x": {"1"}}

	cp := req.Clone()
	cp.Header.Set("Authorization", "Bearer new")
	cp.Query.Set("x", "2")
	cp.Body[0] = '['

	if req.Header.Get("Authorization") != "" {
		t.Error("expected clone headers to be independent")
	}
	if req.Query.Get("x") != "1" {
		t.Error("expected clone query to be independent")
	}
	if req.Body[0] != '{' {
		t.Error("expected clone body to be independent")
	}
}

func TestNew_RequiresScheme(t *testing.T) {
	if _, err := New("localhost:3013"); err == nil {
		t.Error("expected error for base URL without scheme")
	}
}

func TestNew_ProxyValidation(t *testing.T) {
	if _, err := New("http://api", WithProxy("ssh+socks5://jumpbox@10.0.0.5:22")); err == nil {
		t.Error("expected error for proxy without private key")
	}

	missing := filepath.Join(t.TempDir(), "missing.pem")
	if _, err := New("http://api", WithProxy("ssh+socks5://jumpbox@10.0.0.5:22?private-key="+missing)); err == nil {
		t.Error("expected error for unreadable private key")
	}

	keyPath := filepath.Join(t.TempDir(), "jumpbox.pem")
	os.WriteFile(keyPath, []byte("not-a-real-key"), 0o600)
	c, err := New("http://api", WithProxy("ssh+socks5://jumpbox@10.0.0.5:22?private-key="+keyPath))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.httpClient.Transport == nil {
		t.Error("expected proxy transport to be installed")
	}
}
