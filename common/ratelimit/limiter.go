package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed           bool  // Whether the request is allowed
	CurrentCount      int64 // Current count in the window
	Limit             int64 // The limit that was checked
	RetryAfterSeconds int64 // Seconds until the limit resets (0 if allowed)
}

// RateLimiter provides per-caller rate limiting using Redis + Lua
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	logger Logger
}

// NewRateLimiter creates a new rate limiter with embedded Lua script
func NewRateLimiter(redisClient *redis.Client, logger Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		script: redis.NewScript(rateLimitScript),
		logger: logger,
	}
}

// CallerKey returns the counter key for caller and action
func CallerKey(caller string, action Action) string {
	return fmt.Sprintf("rate_limit:caller:%s:%s", caller, action)
}

// CheckCallerLimit counts one request by caller against cfg
func (r *RateLimiter) CheckCallerLimit(ctx context.Context, caller string, cfg ActionConfig) (*RateLimitResult, error) {
	return r.checkLimit(ctx, CallerKey(caller, cfg.Action), cfg.Limit, cfg.window())
}

// checkLimit executes the rate limit Lua script
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int64, windowSec int) (*RateLimitResult, error) {
	result, err := r.script.Run(ctx, r.redis, []string{key}, limit, windowSec).Result()
	if err != nil {
		r.logger.Error("rate limit check failed", "key", key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	rateLimitResult, err := parseScriptResult(result)
	if err != nil {
		return nil, err
	}

	if !rateLimitResult.Allowed {
		r.logger.Warn("rate limit exceeded",
			"key", key,
			"current", rateLimitResult.CurrentCount,
			"limit", limit,
			"retry_after", rateLimitResult.RetryAfterSeconds)
	} else {
		r.logger.Debug("rate limit check passed",
			"key", key,
			"current", rateLimitResult.CurrentCount,
			"limit", limit)
	}

	return rateLimitResult, nil
}

// parseScriptResult decodes {allowed, current_count, limit, retry_after}
func parseScriptResult(result interface{}) (*RateLimitResult, error) {
	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	values := make([]int64, len(resultArray))
	for i, raw := range resultArray {
		v, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result element %d: %T", i, raw)
		}
		values[i] = v
	}

	return &RateLimitResult{
		Allowed:           values[0] == 1,
		CurrentCount:      values[1],
		Limit:             values[2],
		RetryAfterSeconds: values[3],
	}, nil
}

// GetCurrentCount returns current count without incrementing (for monitoring)
func (r *RateLimiter) GetCurrentCount(ctx context.Context, key string) (int64, error) {
	count, err := r.redis.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

// ResetLimit clears a rate limit counter (for testing/admin)
func (r *RateLimiter) ResetLimit(ctx context.Context, key string) error {
	return r.redis.Del(ctx, key).Err()
}
