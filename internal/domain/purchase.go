package domain

import "fmt"

// MaxPurchaseBodyBytes is the request body ceiling, enforced before any
// JSON parsing happens.
const MaxPurchaseBodyBytes = 32 << 10

// ReceiptStatus is the only terminal status a receipt carries.
const ReceiptStatus = "paid"

// PurchasePayload is the validated body of a purchase intent. Immutable once
// a receipt exists for the owning intentId.
type PurchasePayload struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	ItemID   string  `json:"itemId"`
}

// Validate checks field-level constraints.
func (p PurchasePayload) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayload)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPayload)
	}
	if p.ItemID == "" {
		return fmt.Errorf("%w: itemId is required", ErrInvalidPayload)
	}
	return nil
}

// PurchaseIntent is the client-submitted envelope. IntentID is the
// idempotency key: repeated submissions with the same IntentID resolve to
// one receipt.
type PurchaseIntent struct {
	IntentID string           `json:"intentId"`
	Payload  *PurchasePayload `json:"payload"`
}

// ValidateEnvelope checks the structural requirements of the envelope.
func (i PurchaseIntent) ValidateEnvelope() error {
	if i.IntentID == "" {
		return fmt.Errorf("%w: intentId is required", ErrInvalidFormat)
	}
	if i.Payload == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidFormat)
	}
	return nil
}

// Receipt is the server-built record of a resolved purchase. Fields are
// never mutated after creation; the signature covers the canonical
// serialization of this exact structure.
type Receipt struct {
	IntentID string  `json:"intentId"`
	OrderID  string  `json:"orderId"`
	KeyID    string  `json:"keyId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	ItemID   string  `json:"itemId"`
	TS       int64   `json:"ts"`
	Status   string  `json:"status"`
}

// SignedReceipt pairs a receipt with its detached signature. It is the unit
// persisted under the intentId and returned to callers, verifiable against
// the server public key independently of the store.
type SignedReceipt struct {
	Receipt   Receipt `json:"receipt"`
	Signature string  `json:"signature"`
}
