package handler

import (
	"net/http"
	"time"

	"github.com/avdeyev/schoolhub-server/internal/config"
)

// Cookie names shared between the auth endpoints and the middleware.
const (
	CookieAccess   = "access"
	CookieRefresh  = "refresh"
	CookieLoggedIn = "logged_in"
)

// CookieWriter writes and clears the three auth cookies with attributes
// driven by configuration. The logged_in cookie is a non-sensitive marker
// readable by client scripts, so it is never HttpOnly.
type CookieWriter struct {
	cfg        config.Cookie
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieWriter(cfg config.Cookie, accessTTL, refreshTTL time.Duration) *CookieWriter {
	return &CookieWriter{cfg: cfg, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (c *CookieWriter) sameSite() http.SameSite {
	switch c.cfg.SameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (c *CookieWriter) cookie(name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   c.cfg.Secure,
		HttpOnly: httpOnly,
		SameSite: c.sameSite(),
	}
}

// SetSession writes access, refresh and logged_in cookies. Each token
// cookie lives exactly as long as the token it carries.
func (c *CookieWriter) SetSession(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, c.cookie(CookieAccess, accessToken, c.accessTTL, c.cfg.HTTPOnly))
	http.SetCookie(w, c.cookie(CookieRefresh, refreshToken, c.refreshTTL, c.cfg.HTTPOnly))
	http.SetCookie(w, c.cookie(CookieLoggedIn, "true", c.accessTTL, false))
}

// Clear expires all three cookies regardless of whether they were set.
func (c *CookieWriter) Clear(w http.ResponseWriter) {
	for _, name := range []string{CookieAccess, CookieRefresh, CookieLoggedIn} {
		cookie := c.cookie(name, "", 0, name != CookieLoggedIn)
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}
