// Package db defines the key-value store contract shared by the rate
// limiter, the receipt cache, and the proof replay guard. Handlers run as
// independent stateless invocations; this store is their only shared state.
package db

import (
	"context"
	"time"
)

// Store is the full database facade.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides per-key operations with TTL. SetNX is the atomic
// insert-if-absent primitive the receipt create path relies on; without it
// two concurrent requests with the same intent could both mint receipts.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}
