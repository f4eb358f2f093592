// Package ratelimit implements the fixed-window submission throttle backing
// the public access-request endpoint.
package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	platformredis "custodia/internal/platform/redis"
)

// FixedWindow counts submissions per source in Redis. Windows are aligned to
// wall-clock boundaries so the key set stays bounded by the expiry.
type FixedWindow struct {
	client *platformredis.Client
	limit  int
	window time.Duration
}

// NewFixedWindow returns nil when throttling is disabled (no client or no
// limit), which the middleware treats as allow-all.
func NewFixedWindow(client *platformredis.Client, limit int, window time.Duration) *FixedWindow {
	if client == nil || limit <= 0 || window <= 0 {
		return nil
	}
	return &FixedWindow{client: client, limit: limit, window: window}
}

func (l *FixedWindow) Allow(r *http.Request, source string) (bool, error) {
	ctx := r.Context()
	bucket := time.Now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf("custodia:submit:%s:%d", source, bucket)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("throttle incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("throttle expire: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}
