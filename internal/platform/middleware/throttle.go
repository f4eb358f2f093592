package middleware

import (
	"log/slog"
	"net"
	"net/http"

	"custodia/pkg/requestcontext"
)

// Limiter decides whether a request from the given source may proceed.
type Limiter interface {
	Allow(r *http.Request, source string) (bool, error)
}

// Throttle guards unauthenticated endpoints against submission floods. The
// limiter failing is not a reason to refuse service: fail open and log.
func Throttle(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			source := sourceAddr(r)
			allowed, err := limiter.Allow(r, source)
			if err != nil {
				logger.WarnContext(r.Context(), "throttle check failed, allowing request",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","error_description":"too many submissions, try again later"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sourceAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
