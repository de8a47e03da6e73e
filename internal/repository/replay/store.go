// Package replay guards against reuse of DPoP proof identifiers.
package replay

import (
	"context"
	"fmt"
	"time"
)

// store is the consumer interface for replay markers.
type store interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Store tracks seen proof identifiers (jti) in the shared KV store. Markers
// live for twice the accepted clock-skew window: outside that window the
// proof is rejected on its timestamp alone.
type Store struct {
	kv     store
	prefix string
	ttl    time.Duration
}

// New creates a replay store.
func New(kv store, prefix string, ttl time.Duration) *Store {
	return &Store{kv: kv, prefix: prefix, ttl: ttl}
}

// MarkSeen records a proof identifier. Returns true when this is the first
// sighting, false when the identifier was already used. Store errors
// propagate: the auth path fails closed on replay-guard uncertainty.
func (s *Store) MarkSeen(ctx context.Context, jti string) (bool, error) {
	fresh, err := s.kv.SetNX(ctx, s.prefix+"jti:"+jti, []byte("1"), s.ttl)
	if err != nil {
		return false, fmt.Errorf("replay SET NX %s: %w", jti, err)
	}
	return fresh, nil
}
