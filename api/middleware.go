package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	csrfContextKey = "csrf"
	csrfFormField  = "csrfmiddlewaretoken"
	csrfCookieName = "csrftoken"
)

// Harden installs the global middleware: panic recovery, request ids, the
// host allow-list, security headers and CSRF protection for form posts.
func Harden(e *echo.Echo, opts Options) {
	secure := middleware.DefaultSecureConfig
	secure.XFrameOptions = "DENY"
	if !opts.Debug {
		secure.HSTSMaxAge = 31536000
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(AllowedHosts(opts.AllowedHosts))
	e.Use(middleware.SecureWithConfig(secure))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        func(c echo.Context) bool { return c.Path() == "/healthz" },
		TokenLookup:    "form:" + csrfFormField + ",header:X-CSRFToken",
		ContextKey:     csrfContextKey,
		CookieName:     csrfCookieName,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   !opts.Debug,
		CookieSameSite: http.SameSiteLaxMode,
	}))
}

// AllowedHosts rejects requests whose Host header is not in hosts with a 400
// response. An empty list accepts every host.
func AllowedHosts(hosts []string) echo.MiddlewareFunc {
	patterns := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			patterns = append(patterns, h)
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(patterns) == 0 || hostAllowed(c.Request().Host, patterns) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusBadRequest, "invalid host header")
		}
	}
}

func hostAllowed(host string, patterns []string) bool {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return false
	}
	for _, p := range patterns {
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "."):
			if host == p[1:] || strings.HasSuffix(host, p) {
				return true
			}
		case host == p:
			return true
		}
	}
	return false
}
