package auth

import (
	"net/http"
	"time"
)

// Cookie names carried by the browser client.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// SetTokenCookies writes both tokens as HttpOnly, SameSite=Strict cookies.
func SetTokenCookies(w http.ResponseWriter, pair TokenPair, secure bool) {
	http.SetCookie(w, tokenCookie(AccessCookieName, pair.AccessToken, pair.AccessExpiresAt, secure))
	http.SetCookie(w, tokenCookie(RefreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt, secure))
}

// ClearTokenCookies expires both cookies.
func ClearTokenCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		c := tokenCookie(name, "", time.Unix(0, 0), secure)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func tokenCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge := int(time.Until(expires).Seconds()); maxAge > 0 {
		c.MaxAge = maxAge
	}
	return c
}
