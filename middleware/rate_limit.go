package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mdhv11/cardwiz/config"
)

// CounterStore is the backing store for fixed-window request counters.
// Implementations must provide atomic increment and per-key expiry.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// RedisCounterStore counts on Redis INCR/EXPIRE.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

type limitPolicy struct {
	name          string
	limit         int
	windowSeconds int
}

// RateLimit enforces per-actor fixed-window limits with one of three
// policies per request path. The window starts at the first increment of the
// key, not on a sliding clock. If the counter store is unreachable the
// request is allowed through: availability of the limiter is never allowed
// to break the request path.
func RateLimit(store CounterStore, cfg *config.RateLimitConfig, authCfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if cfg.Disabled || exemptPath(path) {
			c.Next()
			return
		}

		policy := resolvePolicy(cfg, path)
		actor := resolveActorKey(c.Request, authCfg)
		key := "rate:user-service:" + policy.name + ":" + actor

		ctx := c.Request.Context()
		count, err := store.Incr(ctx, key)
		if err != nil {
			slog.Warn("rate limit check failed; allowing request",
				"path", path,
				"request_id", GetRequestID(c),
				"error", err,
			)
			c.Next()
			return
		}
		if count == 1 {
			if err := store.Expire(ctx, key, time.Duration(policy.windowSeconds)*time.Second); err != nil {
				slog.Warn("rate limit expire failed; allowing request", "path", path, "error", err)
				c.Next()
				return
			}
		}

		remaining := int64(policy.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		retryAfter := int64(policy.windowSeconds)
		if ttl, err := store.TTL(ctx, key); err == nil && ttl > 0 {
			retryAfter = int64(ttl / time.Second)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(policy.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Window", strconv.Itoa(policy.windowSeconds))

		if count > int64(policy.limit) {
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":           "Too many requests. Please retry shortly.",
				"retryAfterSeconds": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// exemptPath excludes health/info probes and the ingestion callback sink.
func exemptPath(path string) bool {
	return strings.HasPrefix(path, "/health") ||
		strings.HasPrefix(path, "/info") ||
		strings.HasPrefix(path, "/internal/ingestion-callback")
}

func resolvePolicy(cfg *config.RateLimitConfig, path string) limitPolicy {
	if strings.HasPrefix(path, "/api/v1/auth/") {
		return limitPolicy{"auth", cfg.Auth.Limit, cfg.Auth.WindowSeconds}
	}
	if strings.HasPrefix(path, "/api/v1/cards/recommendations") ||
		strings.HasPrefix(path, "/api/v1/cards/statement-missed-savings") ||
		strings.HasPrefix(path, "/api/v1/transactions/validate") ||
		strings.Contains(path, "/documents/analyze") {
		return limitPolicy{"expensive", cfg.Expensive.Limit, cfg.Expensive.WindowSeconds}
	}
	return limitPolicy{"default", cfg.Default.Limit, cfg.Default.WindowSeconds}
}

// resolveActorKey prefers the authenticated identity; anonymous traffic is
// keyed by client IP.
func resolveActorKey(r *http.Request, authCfg *config.AuthConfig) string {
	if token := BearerToken(r); token != "" {
		if claims, err := ParseToken(token, authCfg.JWTSecret); err == nil && claims.Email != "" {
			return "user:" + strings.ToLower(claims.Email)
		}
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
