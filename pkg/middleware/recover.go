package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"automation/pkg/logger"
	"automation/pkg/problems"
)

// Recover turns a handler panic into a 500 problem response.
func Recover(log logger.Sugared) func(http.Handler) http.Handler {
	log = logger.Named(log, "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Errorw("panic", "err", rec, "request_id", RequestIDFrom(r.Context()), "stack", string(debug.Stack()))
					problems.Write(w, &problems.Error{Kind: problems.Internal, Message: fmt.Sprint(rec)})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
