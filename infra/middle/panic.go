package middle

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/pixloo/pixgate/infra/logger"
	"github.com/pixloo/pixgate/infra/response"
)

// PanicRecovery converts panics into structured HTTP 500 responses so that
// nothing in the request path can crash the process.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()

				logger.Error("Panic recovered", fmt.Errorf("%v", err), logger.LogContext{
					Fields: map[string]any{
						"method": r.Method,
						"url":    r.URL.String(),
						"stack":  string(stack),
					},
				})

				w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
				response.Error(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("an unexpected error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
