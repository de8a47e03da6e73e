package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockKV implements the consumer interface for tests.
type mockKV struct {
	incrFn   func(ctx context.Context, key string, val int64) (int64, error)
	expireFn func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockKV) IncrBy(ctx context.Context, key string, val int64) (int64, error) {
	if m.incrFn != nil {
		return m.incrFn(ctx, key, val)
	}
	return 1, nil
}

func (m *mockKV) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}

func TestAllow_UnderCapacity(t *testing.T) {
	counts := map[string]int64{}
	kv := &mockKV{
		incrFn: func(_ context.Context, key string, val int64) (int64, error) {
			counts[key] += val
			return counts[key], nil
		},
	}
	l := New(kv, "edge:", 300*time.Second, 30, zap.NewNop())

	for i := 1; i <= 30; i++ {
		if !l.Allow(context.Background(), "1.2.3.4") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
}

func TestAllow_OverCapacity(t *testing.T) {
	n := int64(0)
	kv := &mockKV{
		incrFn: func(context.Context, string, int64) (int64, error) {
			n++
			return n, nil
		},
	}
	l := New(kv, "edge:", 300*time.Second, 30, zap.NewNop())

	for i := 1; i <= 30; i++ {
		l.Allow(context.Background(), "1.2.3.4")
	}
	if l.Allow(context.Background(), "1.2.3.4") {
		t.Error("request 31 should be rejected")
	}
}

func TestAllow_IndependentClients(t *testing.T) {
	counts := map[string]int64{}
	kv := &mockKV{
		incrFn: func(_ context.Context, key string, val int64) (int64, error) {
			counts[key] += val
			return counts[key], nil
		},
	}
	l := New(kv, "edge:", 300*time.Second, 1, zap.NewNop())

	if !l.Allow(context.Background(), "1.1.1.1") {
		t.Error("first client should be allowed")
	}
	if !l.Allow(context.Background(), "2.2.2.2") {
		t.Error("second client has its own window")
	}
	if l.Allow(context.Background(), "1.1.1.1") {
		t.Error("first client exhausted its window")
	}
}

func TestAllow_FailsOpenOnStoreError(t *testing.T) {
	kv := &mockKV{
		incrFn: func(context.Context, string, int64) (int64, error) {
			return 0, errors.New("conn refused")
		},
	}
	l := New(kv, "edge:", 300*time.Second, 30, zap.NewNop())

	if !l.Allow(context.Background(), "1.2.3.4") {
		t.Error("limiter must fail open when the store is unreachable")
	}
}

func TestAllow_WindowTTLOnlySetOnce(t *testing.T) {
	n := int64(0)
	nxCalls := 0
	kv := &mockKV{
		incrFn: func(context.Context, string, int64) (int64, error) {
			n++
			return n, nil
		},
		expireFn: func(_ context.Context, _ string, ttl time.Duration, nx bool) error {
			if !nx {
				t.Error("expire must use NX so the window does not slide")
			}
			if ttl != 300*time.Second {
				t.Errorf("ttl: got %v", ttl)
			}
			nxCalls++
			return nil
		},
	}
	l := New(kv, "edge:", 300*time.Second, 30, zap.NewNop())

	l.Allow(context.Background(), "1.2.3.4")
	l.Allow(context.Background(), "1.2.3.4")
	if nxCalls != 2 {
		t.Errorf("expire called %d times, want 2", nxCalls)
	}
}
