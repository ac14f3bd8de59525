package middleware

import (
	"net/http"
	"strings"

	"automation/internal/auth"
	"automation/pkg/logger"
	"automation/pkg/problems"
)

// public paths are served without credentials.
var public = map[string]bool{
	"/healthz":      true,
	"/metrics":      true,
	"/openapi.json": true,
}

// BearerAuth resolves "Authorization: Bearer <token>" through a and stores the
// resulting identity in the request context. Missing or unknown tokens get 401.
func BearerAuth(a auth.Authenticator, log logger.Sugared) func(http.Handler) http.Handler {
	log = logger.Named(log, "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				problems.Write(w, problems.AuthRequired())
				return
			}
			id, ok := a.Validate(authz[len("Bearer "):])
			if !ok {
				log.Debugw("rejected bearer token", "request_id", RequestIDFrom(r.Context()))
				problems.Write(w, problems.Unauthenticated("Invalid authentication token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
