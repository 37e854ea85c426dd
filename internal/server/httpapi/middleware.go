package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/primeauth/internal/server/users"
)

type ctxKey string

const userKey ctxKey = "user"

func userFromContext(ctx context.Context) *users.User {
	u, _ := ctx.Value(userKey).(*users.User)
	return u
}

// requireAccessToken rejects requests without a valid bearer access token and
// puts the authenticated user into the request context.
func (h *Handler) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "detail", "Authentication credentials were not provided.")
			return
		}

		user, err := h.users.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, users.ErrInvalidToken) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"detail": "Given token not valid for any token type",
					"code":   "token_not_valid",
				})
				return
			}
			h.internalError(w, r, "detail", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
