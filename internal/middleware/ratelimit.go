package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avelsk/counselling-booking/internal/config"
)

// RateLimit returns a fixed-window rate limiter backed by Redis. Keys
// are scoped per user (falling back to the client IP for anonymous
// requests) and per route. When the Redis client is nil or the config
// disables limiting, the middleware is a pass-through; a Redis error at
// request time also lets the request through, since losing the limiter
// must never take booking creation down with it.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Enabled || rdb == nil {
				return next(c)
			}
			who := c.RealIP()
			if v, ok := c.Get("user_id").(string); ok && v != "" {
				who = v
			} else if v, ok := c.Get("user_id").(float64); ok {
				who = strconv.FormatUint(uint64(v), 10)
			}
			window := time.Now().Unix() / int64(cfg.Window.Seconds())
			key := fmt.Sprintf("%s:%s:%s:%d", cfg.Prefix, who, c.Path(), window)

			ctx := c.Request().Context()
			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
				return next(c)
			}
			if n == 1 {
				// First hit of the window owns setting the TTL.
				_ = rdb.Expire(ctx, key, cfg.Window).Err()
			}
			if n > int64(cfg.Max) {
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
