package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the actor it encodes.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Actor, error)
}

// RequireAuth authenticates the caller and injects the actor into context.
// Authorization decisions stay with the permission gate in the service layer;
// this middleware only establishes who is calling.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			actor, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
