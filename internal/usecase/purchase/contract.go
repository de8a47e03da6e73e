package purchase

import (
	"context"

	"github.com/grahmos/edge-gateway/internal/domain"
)

// ReceiptStore is the idempotency cache: one stored receipt per intentId.
type ReceiptStore interface {
	Find(ctx context.Context, intentID string) (*domain.SignedReceipt, error)
	Create(ctx context.Context, intentID string, sr *domain.SignedReceipt) (*domain.SignedReceipt, bool, error)
}

// RateLimiter caps new-intent purchases per client.
type RateLimiter interface {
	Allow(ctx context.Context, client string) bool
}

// Signer produces detached signatures over canonical serializations.
type Signer interface {
	Sign(v any) (string, error)
	KeyID() string
}
