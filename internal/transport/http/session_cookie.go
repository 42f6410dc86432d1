package http

import (
	"net/http"
	"time"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "quiz_session"

// TokenCodec signs session IDs into cookie values and back.
type TokenCodec interface {
	Issue(sessionID string) (string, error)
	Parse(token string) (string, error)
}

type cookieJar struct {
	tokens TokenCodec
	secure bool
	maxAge time.Duration
}

// sessionID returns the verified session ID, or "" when the cookie is
// missing or was not signed by us.
func (c cookieJar) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	id, err := c.tokens.Parse(cookie.Value)
	if err != nil {
		return ""
	}
	return id
}

func (c cookieJar) set(w http.ResponseWriter, sessionID string) error {
	token, err := c.tokens.Issue(sessionID)
	if err != nil {
		return err
	}
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if c.maxAge > 0 {
		cookie.MaxAge = int(c.maxAge.Seconds())
	}
	http.SetCookie(w, cookie)
	return nil
}

func (c cookieJar) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
