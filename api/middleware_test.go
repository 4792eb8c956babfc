package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHostAllowed(t *testing.T) {
	patterns := []string{"localhost", "127.0.0.1", ".onrender.com"}
	tests := []struct {
		host string
		want bool
	}{
		{host: "localhost", want: true},
		{host: "localhost:8080", want: true},
		{host: "127.0.0.1:8000", want: true},
		{host: "onrender.com", want: true},
		{host: "taskweb.onrender.com", want: true},
		{host: "TaskWeb.OnRender.com.", want: true},
		{host: "evilonrender.com", want: false},
		{host: "example.com", want: false},
		{host: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := hostAllowed(tt.host, patterns); got != tt.want {
				t.Fatalf("hostAllowed(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
	if !hostAllowed("anything.test", []string{"*"}) {
		t.Fatalf("wildcard must allow any host")
	}
}

func TestAllowedHostsMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(AllowedHosts([]string{"example.com"}))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for allowed host, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "attacker.test"
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown host, got %d", rec.Code)
	}
}

func newHardenedEcho(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	Harden(e, Options{AllowedHosts: []string{"example.com"}})
	e.GET("/form", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(csrfContextKey).(string))
	})
	e.POST("/form", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/panic", func(echo.Context) error { panic("boom") })
	return e
}

func TestHardenCSRF(t *testing.T) {
	e := newHardenedEcho(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/form", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	token := rec.Body.String()
	var csrfCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			csrfCookie = c
		}
	}
	if token == "" || csrfCookie == nil || csrfCookie.Value != token {
		t.Fatalf("expected csrf token cookie matching %q, got %#v", token, csrfCookie)
	}
	if !csrfCookie.Secure {
		t.Fatalf("csrf cookie must be secure outside debug")
	}

	post := func(form url.Values) int {
		req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := post(url.Values{}); code < http.StatusBadRequest {
		t.Fatalf("expected rejection without token, got %d", code)
	}
	if code := post(url.Values{csrfFormField: {"forged"}}); code != http.StatusForbidden {
		t.Fatalf("expected 403 for a forged token, got %d", code)
	}
	if code := post(url.Values{csrfFormField: {token}}); code != http.StatusNoContent {
		t.Fatalf("expected 204 with a valid token, got %d", code)
	}
}

func TestHardenHeadersAndRecovery(t *testing.T) {
	e := newHardenedEcho(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/form", nil))
	if got := rec.Header().Get(echo.HeaderXFrameOptions); got != "DENY" {
		t.Fatalf("unexpected X-Frame-Options %q", got)
	}
	if got := rec.Header().Get(echo.HeaderXContentTypeOptions); got != "nosniff" {
		t.Fatalf("unexpected X-Content-Type-Options %q", got)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("expected a request id")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected panic to be recovered as 500, got %d", rec.Code)
	}
}
