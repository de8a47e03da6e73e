// Package ratelimit implements a fixed-window purchase rate limiter on the
// shared KV store, so independently-invoked handlers agree on the count.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/grahmos/edge-gateway/internal/metrics"
)

// store is the consumer interface for counter operations.
type store interface {
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Limiter counts requests per client key within a fixed window
// (INCRBY + EXPIRE NX; the first increment of a window starts its clock).
type Limiter struct {
	kv       store
	prefix   string
	window   time.Duration
	capacity int64
	logger   *zap.Logger
}

// New creates a limiter. window and capacity define the fixed window
// (e.g. 30 requests per 300s).
func New(kv store, prefix string, window time.Duration, capacity int64, logger *zap.Logger) *Limiter {
	return &Limiter{
		kv:       kv,
		prefix:   prefix,
		window:   window,
		capacity: capacity,
		logger:   logger,
	}
}

// Allow consumes one slot for the client and reports whether it fit the
// window. The limiter fails open on store errors: enforcement degrades, the
// platform stays available. Degradations are logged and counted.
func (l *Limiter) Allow(ctx context.Context, client string) bool {
	key := l.prefix + "rl:" + client

	n, err := l.kv.IncrBy(ctx, key, 1)
	if err != nil {
		l.logger.Warn("rate limiter degraded, allowing request",
			zap.String("client", client),
			zap.Error(err),
		)
		metrics.RateLimitFailOpenTotal.Inc()
		return true
	}

	// TTL only on the window's first increment, so the window is fixed
	// rather than sliding.
	if err := l.kv.Expire(ctx, key, l.window, true); err != nil {
		l.logger.Warn("rate limiter EXPIRE failed",
			zap.String("client", client),
			zap.Error(err),
		)
	}

	return n <= l.capacity
}
