// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/bazaar/internal/platform/apperr"
	"github.com/taibuivan/bazaar/internal/platform/constants"
)

// LimiterConfig sets the fixed-window budget shared by every throttled action.
type LimiterConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces a fixed-window attempt budget per (action, subject) pair.
//
// # Failure Mode
//
// When Redis is unreachable the limiter logs and lets the request through,
// so an outage of the counter store never locks every user out of sign-in.
type Limiter struct {
	client redis.UniversalClient
	config LimiterConfig
	logger *slog.Logger
}

// NewLimiter creates a [Limiter] backed by the given Redis client.
func NewLimiter(client redis.UniversalClient, config LimiterConfig, logger *slog.Logger) *Limiter {
	return &Limiter{client: client, config: config, logger: logger}
}

// Allow records one attempt and returns an [apperr.RateLimited] error once the
// budget for the current window is exhausted.
func (limiter *Limiter) Allow(context stdctx.Context, action, subject string) error {
	key := throttleKey(action, subject)

	// INCR and EXPIRE NX share one transaction, so a counter can never outlive
	// its window. NX also re-arms a key left without a TTL.
	var incr *redis.IntCmd
	_, err := limiter.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(context, key)
		pipe.ExpireNX(context, key, limiter.config.Window)
		return nil
	})
	if err != nil {
		limiter.logger.WarnContext(context, "auth_throttle_unavailable",
			slog.String("action", action),
			slog.Any("error", err),
		)
		return nil
	}

	count := incr.Val()
	if count <= int64(limiter.config.MaxAttempts) {
		return nil
	}

	retryAfter, err := limiter.client.TTL(context, key).Result()
	if err != nil || retryAfter <= 0 {
		retryAfter = limiter.config.Window
	}

	limiter.logger.WarnContext(context, "auth_throttle_exceeded",
		slog.String("action", action),
		slog.Int64("attempts", count),
	)
	return apperr.RateLimited(int(math.Ceil(retryAfter.Seconds())))
}

// Reset clears the counter for (action, subject), e.g. after a successful login.
func (limiter *Limiter) Reset(context stdctx.Context, action, subject string) error {
	if err := limiter.client.Del(context, throttleKey(action, subject)).Err(); err != nil {
		return fmt.Errorf("redis: throttle reset failed: %w", err)
	}
	return nil
}

func throttleKey(action, subject string) string {
	return constants.RedisPrefixAuthThrottle + action + ":" + subject
}
