package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
)

// RateLimiter is a Redis fixed-window limiter shared across gateway
// instances. Windows are keyed per caller: the principal ID when the
// request is authenticated, otherwise the client IP.
//
// When Redis is unreachable the limiter fails open. Losing rate
// limiting briefly is better than taking down every login.
type RateLimiter struct {
	client  *redis.Client
	limit   int
	window  time.Duration
	scope   string
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRateLimiter builds a limiter allowing limit requests per window
// under the given scope label.
func NewRateLimiter(client *redis.Client, scope string, limit int, window time.Duration, logger *observability.Logger, metrics *observability.Metrics) *RateLimiter {
	return &RateLimiter{
		client:  client,
		limit:   limit,
		window:  window,
		scope:   scope,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Middleware enforces the limit
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.client == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.windowKey(r)
		ctx := r.Context()

		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.WithError(err).Warn("rate limiter unavailable, failing open")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.client.Expire(ctx, key, rl.window)
		}

		if count > int64(rl.limit) {
			if rl.metrics != nil {
				rl.metrics.RateLimitedTotal.WithLabelValues(rl.scope).Inc()
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) windowKey(r *http.Request) string {
	caller := httputil.ClientIP(r)
	if pr := principal.FromContext(r.Context()); pr != nil {
		caller = pr.ID
	}
	window := rl.now().Unix() / int64(rl.window.Seconds())
	return fmt.Sprintf("frameio:ratelimit:%s:%s:%d", rl.scope, caller, window)
}
