package middleware

import (
	"context"
	"net/http"

	"automation/internal/auth"
	"automation/pkg/problems"
)

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFrom returns the caller attached by BearerAuth.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(auth.Identity)
	return id, ok
}

// RequireScope rejects callers lacking any of scopes, reporting the first
// one missing. Order matters when a route needs several.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				problems.Write(w, problems.AuthRequired())
				return
			}
			for _, s := range scopes {
				if !id.HasScope(s) {
					problems.Write(w, problems.Forbidden(s))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
