package httpapi

import (
	"net/http"
	"strings"
)

const (
	authHeader  = "Authorization"
	bearer      = "Bearer "
	apiKeyParam = "api_key"
)

// tokenFromRequest returns the caller token from the Authorization header,
// then the api_key query parameter, then the api_key cookie. An absent token
// yields "" which the gate rejects like any other bad token.
func tokenFromRequest(r *http.Request) string {
	if token, ok := extractBearerToken(r.Header.Get(authHeader)); ok {
		return token
	}
	if v := strings.TrimSpace(r.URL.Query().Get(apiKeyParam)); v != "" {
		return v
	}
	if c, err := r.Cookie(apiKeyParam); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	return token, token != ""
}

func sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     apiKeyParam,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func expiredSessionCookie() *http.Cookie {
	c := sessionCookie("")
	c.MaxAge = -1
	return c
}
