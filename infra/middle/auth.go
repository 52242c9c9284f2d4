package middle

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/pixloo/pixgate/infra/response"
)

type contextKey string

// UserIDKey is the context key carrying the authenticated wallet user id.
const UserIDKey contextKey = "user_id"

// UserAuth extracts the authenticated user id from the X-User-ID header.
// Session management lives at the platform edge; by the time a request
// reaches this service the header has been set by the authenticating proxy.
func UserAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			response.Error(w, http.StatusUnauthorized, "Unauthorized", errors.New("missing user identity"))
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			response.Error(w, http.StatusUnauthorized, "Unauthorized", errors.New("invalid user identity"))
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id from the request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

// GetClientIP extracts the client IP, honoring proxy headers.
func GetClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
