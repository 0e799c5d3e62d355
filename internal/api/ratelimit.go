package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/victorivanov/huddle/internal/auth"
	"github.com/victorivanov/huddle/internal/redis"
)

// HitCounter counts a request against a fixed-window quota.
type HitCounter interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (redis.Quota, error)
}

// rateLimitKey buckets requests by caller and route pattern, so
// /channels/1/messages and /channels/2/messages share a bucket while GET
// and POST on the same pattern do not.
func rateLimitKey(c echo.Context) string {
	route := c.Request().Method + " " + c.Path()
	if uid := auth.GetUserID(c); uid != 0 {
		return "rl:user:" + strconv.FormatInt(uid, 10) + ":" + route
	}
	return "rl:ip:" + c.RealIP() + ":" + route
}

// RateLimitMiddleware rejects callers that exceed limit requests per window
// with 429 RATE_LIMITED. A counter error lets the request through.
func RateLimitMiddleware(counter HitCounter, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateLimitKey(c)
			q, err := counter.Hit(c.Request().Context(), key, limit, window)
			if err != nil {
				slog.Warn("rate limit check failed, allowing request", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(q.Remaining(), 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(q.ResetIn).Unix(), 10))

			if !q.Allowed() {
				secs := int64((q.ResetIn + time.Second - 1) / time.Second)
				h.Set("Retry-After", strconv.FormatInt(secs, 10))
				return Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, please try again later")
			}
			return next(c)
		}
	}
}
