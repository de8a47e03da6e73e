// Package purchase turns a purchase intent into a signed receipt exactly
// once per intentId. Idempotency outranks rate limiting: a resolved intent
// is answered from the cache before the limiter is consulted.
package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grahmos/edge-gateway/internal/domain"
	"github.com/grahmos/edge-gateway/internal/metrics"
)

// Service is the transaction issuer.
type Service struct {
	receipts ReceiptStore
	limiter  RateLimiter
	signer   Signer
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a transaction issuer.
func New(receipts ReceiptStore, limiter RateLimiter, signer Signer, logger *zap.Logger) *Service {
	return &Service{
		receipts: receipts,
		limiter:  limiter,
		signer:   signer,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue resolves a purchase intent to its signed receipt. For a fixed
// intentId every successful call returns byte-identical receipt content;
// the payload of later calls is ignored once the intent is resolved.
func (s *Service) Issue(
	ctx context.Context, client string, intent domain.PurchaseIntent,
) (*domain.SignedReceipt, error) {
	if err := intent.ValidateEnvelope(); err != nil {
		return nil, err
	}
	if err := intent.Payload.Validate(); err != nil {
		return nil, err
	}

	// Idempotency first. A store failure here is payment-adjacent and is
	// never downgraded: better an explicit error than a duplicate receipt.
	existing, err := s.receipts.Find(ctx, intent.IntentID)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing != nil {
		metrics.IdempotencyHitsTotal.Inc()
		return existing, nil
	}

	if !s.limiter.Allow(ctx, client) {
		metrics.RateLimitRejectionsTotal.Inc()
		return nil, fmt.Errorf("%w: client %s", domain.ErrRateLimited, client)
	}

	receipt := domain.Receipt{
		IntentID: intent.IntentID,
		OrderID:  uuid.NewString(),
		KeyID:    s.signer.KeyID(),
		Amount:   intent.Payload.Amount,
		Currency: intent.Payload.Currency,
		ItemID:   intent.Payload.ItemID,
		TS:       s.now().Unix(),
		Status:   domain.ReceiptStatus,
	}

	signature, err := s.signer.Sign(receipt)
	if err != nil {
		s.logger.Error("receipt signing failed",
			zap.String("intent_id", intent.IntentID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("sign receipt: %w", err)
	}

	sr := &domain.SignedReceipt{Receipt: receipt, Signature: signature}

	stored, created, err := s.receipts.Create(ctx, intent.IntentID, sr)
	if err != nil {
		return nil, fmt.Errorf("persist receipt: %w", err)
	}
	if created {
		metrics.ReceiptsIssuedTotal.Inc()
		s.logger.Info("receipt issued",
			zap.String("intent_id", receipt.IntentID),
			zap.String("order_id", receipt.OrderID),
			zap.String("item_id", receipt.ItemID),
		)
	} else {
		// A concurrent request with the same intentId won the create race;
		// its receipt is the canonical one.
		metrics.IdempotencyHitsTotal.Inc()
	}
	return stored, nil
}
