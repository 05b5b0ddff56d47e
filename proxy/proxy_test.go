package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/aisgo/vlog-gateway/errors"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/transport/upstream"
)

const basePath = "/api/json/v3"

func newProxyApp(t *testing.T, h http.HandlerFunc) *fiber.App {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	up := upstream.Config{BaseURL: srv.URL + basePath}
	handler := New(Config{}, up, upstream.New(up, logger.NewNop()), logger.NewNop())
	app := fiber.New()
	handler.Register(app)
	return app
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestRewrite(t *testing.T) {
	h := New(Config{}, upstream.Config{BaseURL: "https://host/api/json/v3/"}, nil, nil)
	cases := []struct {
		rest, query, want, kind string
	}{
		{"/search", "key=x", "https://host/api/json/v3/videos/search?key=x", "resource"},
		{"/file/attachments/1.png", "", "https://host/api/json/v3/file/attachments/1.png", "file"},
		{"/detail/abc", "gather=g&token=t", "https://host/api/json/v3/videos/detail/abc?gather=g&token=t", "resource"},
		{"/filed/x", "", "https://host/api/json/v3/videos/filed/x", "resource"},
	}
	for _, tc := range cases {
		got, kind := h.Rewrite(tc.rest, tc.query)
		if got != tc.want || kind != tc.kind {
			t.Fatalf("rewrite(%q,%q) = %q,%q want %q,%q", tc.rest, tc.query, got, kind, tc.want, tc.kind)
		}
	}
}

func TestProxyGETResourceAndFile(t *testing.T) {
	app := newProxyApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.RequestURI() {
		case basePath + "/videos/search?key=x":
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Upstream", "yes")
			_, _ = io.WriteString(w, `{"code":"0","data":[]}`)
		case basePath + "/file/attachments/1.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = io.WriteString(w, "PNGDATA")
		default:
			t.Errorf("unexpected upstream uri: %s", r.URL.RequestURI())
			w.WriteHeader(http.StatusTeapot)
		}
	})

	resp, body := send(t, app, httptest.NewRequest(http.MethodGet, "/api-proxy/search?key=x", nil))
	if resp.StatusCode != http.StatusOK || body != `{"code":"0","data":[]}` {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Upstream") != "yes" || !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		t.Fatalf("upstream headers not copied: %v", resp.Header)
	}

	resp, body = send(t, app, httptest.NewRequest(http.MethodGet, "/api-proxy/file/attachments/1.png", nil))
	if resp.StatusCode != http.StatusOK || body != "PNGDATA" || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected file response: %d %s %v", resp.StatusCode, body, resp.Header)
	}
}

func TestProxyPropagatesUpstreamErrors(t *testing.T) {
	app := newProxyApp(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "no such video")
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	})

	resp, body := send(t, app, httptest.NewRequest(http.MethodGet, "/api-proxy/missing", nil))
	if resp.StatusCode != http.StatusNotFound || body != "no such video" {
		t.Fatalf("expected 404 passthrough, got %d %q", resp.StatusCode, body)
	}

	resp, body = send(t, app, httptest.NewRequest(http.MethodGet, "/api-proxy/other", nil))
	if resp.StatusCode != http.StatusBadGateway || body != "upstream down" {
		t.Fatalf("expected 502 passthrough, got %d %q", resp.StatusCode, body)
	}
}

func TestProxyPOSTForwardsBody(t *testing.T) {
	app := newProxyApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.RequestURI() != basePath+"/videos/comments-post/v1?token=tk" {
			t.Errorf("unexpected uri: %s", r.URL.RequestURI())
		}
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != "content=hello" {
			t.Errorf("unexpected body: %q", b)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"code":"200"}`)
	})

	req := httptest.NewRequest(http.MethodPost, "/api-proxy/comments-post/v1?token=tk", strings.NewReader("content=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, body := send(t, app, req)
	if resp.StatusCode != http.StatusCreated || body != `{"code":"200"}` {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, body)
	}
}

func TestProxyForwardsOnlyContentHeaders(t *testing.T) {
	app := newProxyApp(t, func(w http.ResponseWriter, r *http.Request) {
		for _, h := range []string{"Cookie", "Authorization", "X-Custom"} {
			if v := r.Header.Get(h); v != "" {
				t.Errorf("%s must not reach upstream, got %q", h, v)
			}
		}
		if got := r.Header.Values("Accept-Language"); len(got) != 2 {
			t.Errorf("repeated headers must be kept, got %v", got)
		}
		if r.Header.Get("User-Agent") != "vlog-android/3.1" || r.Header.Get("Accept") != "application/json" {
			t.Errorf("content headers not forwarded: %v", r.Header)
		}
		_, _ = io.WriteString(w, `{"code":"0"}`)
	})

	req := httptest.NewRequest(http.MethodGet, "/api-proxy/search?key=x", nil)
	req.Header.Set("Cookie", "session=secret")
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Custom", "1")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vlog-android/3.1")
	req.Header.Add("Accept-Language", "zh-CN")
	req.Header.Add("Accept-Language", "en")
	resp, _ := send(t, app, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

type failingDoer struct{ err error }

func (d failingDoer) Do(context.Context, *fasthttp.Request, *fasthttp.Response) error {
	return d.err
}

func TestProxyTransportFailures(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.Wrap(errors.ErrCodePoolExhausted, "pool", nil), http.StatusServiceUnavailable},
		{errors.Wrap(errors.ErrCodeCircuitOpen, "open", nil), http.StatusServiceUnavailable},
		{errors.Wrap(errors.ErrCodeTimeout, "slow", nil), http.StatusGatewayTimeout},
		{errors.Wrap(errors.ErrCodeTransport, "refused", nil), http.StatusBadGateway},
	}
	for _, tc := range cases {
		h := New(Config{}, upstream.Config{BaseURL: "http://backend"}, failingDoer{tc.err}, logger.NewNop())
		app := fiber.New()
		h.Register(app)

		resp, body := send(t, app, httptest.NewRequest(http.MethodGet, "/api-proxy/search", nil))
		if resp.StatusCode != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, resp.StatusCode)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, ok := payload["code"]; !ok {
			t.Fatalf("expected result envelope, got %s", body)
		}
	}
}

func TestProxyPoolExhaustionWithRealTransport(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		_, _ = io.WriteString(w, "late")
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	up := upstream.Config{BaseURL: srv.URL, MaxConnsTotal: 1, AcquireTimeout: 50 * time.Millisecond}
	h := New(Config{}, up, upstream.New(up, logger.NewNop()), logger.NewNop())
	app := fiber.New()
	h.Register(app)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api-proxy/slow", nil)
		resp, err := app.Test(req, fiber.TestConfig{Timeout: 0})
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first request never reached upstream")
	}

	resp, _ := send(t, app, httptest.NewRequest(http.MethodGet, "/api-proxy/fast", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on pool exhaustion, got %d", resp.StatusCode)
	}
}
