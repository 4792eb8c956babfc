package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskweb/session"
)

const (
	sessionCookieName = "sessionid"
	sessionContextKey = "session"
	loginPath         = "/login/"
	defaultLoginMsg   = "Please login to continue"
)

// sessionMiddleware loads the session named by the request cookie and saves
// it right before the response is written, so redirects carry the cookie.
func sessionMiddleware(store Sessions, logger *log.Logger, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var id string
			if ck, err := c.Cookie(sessionCookieName); err == nil {
				id = ck.Value
			}
			sess, err := store.Load(c.Request().Context(), id)
			if err != nil {
				logger.WithError(err).Warn("session load failed")
			}
			c.Set(sessionContextKey, sess)
			c.Response().Before(func() {
				saveSession(c, store, sess, id, logger, secure)
			})
			return next(c)
		}
	}
}

func saveSession(c echo.Context, store Sessions, sess *session.Session, incomingID string, logger *log.Logger, secure bool) {
	if !sess.Empty() || sess.Modified() {
		if err := store.Save(c.Request().Context(), sess); err != nil {
			logger.WithError(err).Error("session save failed")
			return
		}
	}
	switch {
	case sess.Persisted():
		c.SetCookie(&http.Cookie{
			Name:     sessionCookieName,
			Value:    sess.ID,
			Path:     "/",
			MaxAge:   int(store.TTL().Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	case incomingID != "":
		c.SetCookie(&http.Cookie{
			Name:     sessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// sessionFrom returns the session of the request. Handlers outside the session
// middleware get a throwaway session.
func sessionFrom(c echo.Context) *session.Session {
	if sess, ok := c.Get(sessionContextKey).(*session.Session); ok && sess != nil {
		return sess
	}
	sess := &session.Session{}
	c.Set(sessionContextKey, sess)
	return sess
}

// requireAuth redirects anonymous requests to the login page with a warning.
func requireAuth(message string) echo.MiddlewareFunc {
	if message == "" {
		message = defaultLoginMsg
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := sessionFrom(c)
			if !sess.Authenticated() {
				return redirectToLogin(c, sess, message)
			}
			return next(c)
		}
	}
}

func redirectToLogin(c echo.Context, sess *session.Session, message string) error {
	sess.AddFlash(session.LevelWarning, message)
	return c.Redirect(http.StatusFound, loginPath)
}
