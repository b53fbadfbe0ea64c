package session

import (
	"net/http"
	"strings"

	dErrors "provisio/pkg/domain-errors"
	"provisio/pkg/httputil"
)

// CookieName carries the session token for browser clients. API clients may
// send the same token as a bearer Authorization header instead.
const CookieName = "provisio_session"

// TokenFromRequest extracts the session token, preferring the bearer header.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Require guards a route subtree behind a live admin session.
func Require(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			if err := svc.Validate(r.Context(), token); err != nil {
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
