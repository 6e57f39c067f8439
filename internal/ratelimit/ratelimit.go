// Package ratelimit throttles routes per caller with a GCRA limiter kept in Redis.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/go-redis/redis_rate/v9"
	"github.com/isdelr/contacts-be/internal/auth"
	"github.com/rs/zerolog/log"
)

// ContactsListLimit allows 10 requests per 60 seconds.
func ContactsListLimit() redis_rate.Limit {
	return redis_rate.PerMinute(10)
}

// Limiter is satisfied by *redis_rate.Limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// Middleware rejects callers that exceed limit on route with 429. Authenticated
// callers are keyed by user id, anonymous ones by remote address. When the limiter
// itself fails the request is let through.
func Middleware(limiter Limiter, route string, limit redis_rate.Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := Key(route, r)
			res, err := limiter.Allow(r.Context(), key, limit)
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if res.Allowed == 0 {
				retry := int(math.Ceil(res.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"detail": fmt.Sprintf("Rate limit exceeded: %d per %s", limit.Rate, limit.Period),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Key builds the limiter key for a request.
func Key(route string, r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok {
		return fmt.Sprintf("rate:%s:user:%d", route, user.ID)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("rate:%s:ip:%s", route, host)
}
