// Package receipt persists signed receipts keyed by intentId.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/grahmos/edge-gateway/internal/db"
	"github.com/grahmos/edge-gateway/internal/domain"
)

// store is the consumer interface for receipt persistence.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Store implements the intentId -> SignedReceipt cache on top of the KV
// store. The create path goes through SET NX so that two concurrent requests
// carrying the same new intentId converge on a single stored receipt.
type Store struct {
	kv     store
	prefix string
	ttl    time.Duration
}

// New creates a receipt store. ttl bounds how long a resolved intent stays
// idempotent (recommended: 24h).
func New(kv store, prefix string, ttl time.Duration) *Store {
	return &Store{kv: kv, prefix: prefix, ttl: ttl}
}

// Find returns the stored receipt for an intent, or (nil, nil) when the
// intent has not been resolved yet.
func (s *Store) Find(ctx context.Context, intentID string) (*domain.SignedReceipt, error) {
	data, err := s.kv.Get(ctx, s.key(intentID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("receipt GET %s: %w", intentID, err)
	}

	var sr domain.SignedReceipt
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("receipt decode %s: %w", intentID, err)
	}
	return &sr, nil
}

// Create stores the receipt if the intent is still unresolved. Returns the
// receipt that ended up stored and whether this call created it; when a
// concurrent writer won the race, the winner's receipt is returned instead.
func (s *Store) Create(
	ctx context.Context, intentID string, sr *domain.SignedReceipt,
) (*domain.SignedReceipt, bool, error) {
	data, err := json.Marshal(sr)
	if err != nil {
		return nil, false, fmt.Errorf("receipt encode %s: %w", intentID, err)
	}

	created, err := s.kv.SetNX(ctx, s.key(intentID), data, s.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("receipt SET NX %s: %w", intentID, err)
	}
	if created {
		return sr, true, nil
	}

	existing, err := s.Find(ctx, intentID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// The winner's entry expired between SET NX and GET. Vanishingly
		// rare with a 24h TTL; surface it rather than re-minting.
		return nil, false, fmt.Errorf("receipt %s: lost create race and winner absent", intentID)
	}
	return existing, false, nil
}

func (s *Store) key(intentID string) string {
	return s.prefix + "receipt:" + intentID
}
