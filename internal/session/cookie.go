package session

import (
	"net/http"
	"time"
)

// CookieName is the browser cookie carrying the session id.
const CookieName = "zhunle_session"

// HeaderName carries the session id for API clients without cookies.
const HeaderName = "X-Session-ID"

// FromRequest returns the session id sent with r, preferring the cookie.
func FromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(HeaderName)
}

// SetCookie stores id in the session cookie and echoes it in the
// session header.
func SetCookie(w http.ResponseWriter, id string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, c)
	w.Header().Set(HeaderName, id)
}
