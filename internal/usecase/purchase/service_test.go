package purchase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/grahmos/edge-gateway/internal/domain"
)

type mockReceipts struct {
	findFn   func(ctx context.Context, intentID string) (*domain.SignedReceipt, error)
	createFn func(ctx context.Context, intentID string, sr *domain.SignedReceipt) (*domain.SignedReceipt, bool, error)
}

func (m *mockReceipts) Find(ctx context.Context, intentID string) (*domain.SignedReceipt, error) {
	return m.findFn(ctx, intentID)
}

func (m *mockReceipts) Create(
	ctx context.Context, intentID string, sr *domain.SignedReceipt,
) (*domain.SignedReceipt, bool, error) {
	return m.createFn(ctx, intentID, sr)
}

type mockLimiter struct {
	allowFn func(ctx context.Context, client string) bool
}

func (m *mockLimiter) Allow(ctx context.Context, client string) bool {
	return m.allowFn(ctx, client)
}

type mockSigner struct {
	signFn func(v any) (string, error)
}

func (m *mockSigner) Sign(v any) (string, error) {
	if m.signFn != nil {
		return m.signFn(v)
	}
	return "sig-test", nil
}

func (m *mockSigner) KeyID() string { return "test-key-1" }

func validIntent() domain.PurchaseIntent {
	return domain.PurchaseIntent{
		IntentID: "abc-1",
		Payload: &domain.PurchasePayload{
			Amount:   12.5,
			Currency: "USD",
			ItemID:   "emergency-kit",
		},
	}
}

func emptyStore() *mockReceipts {
	return &mockReceipts{
		findFn: func(context.Context, string) (*domain.SignedReceipt, error) {
			return nil, nil
		},
		createFn: func(_ context.Context, _ string, sr *domain.SignedReceipt) (*domain.SignedReceipt, bool, error) {
			return sr, true, nil
		},
	}
}

func allowAll() *mockLimiter {
	return &mockLimiter{allowFn: func(context.Context, string) bool { return true }}
}

func TestIssue(t *testing.T) {
	svc := New(emptyStore(), allowAll(), &mockSigner{}, zap.NewNop())
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	sr, err := svc.Issue(context.Background(), "10.0.0.1", validIntent())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	r := sr.Receipt
	if r.IntentID != "abc-1" {
		t.Errorf("intentId = %q", r.IntentID)
	}
	if r.OrderID == "" {
		t.Error("expected a generated orderId")
	}
	if r.KeyID != "test-key-1" {
		t.Errorf("keyId = %q", r.KeyID)
	}
	if r.Amount != 12.5 || r.Currency != "USD" || r.ItemID != "emergency-kit" {
		t.Errorf("payload echo = %+v", r)
	}
	if r.TS != 1700000000 {
		t.Errorf("ts = %d", r.TS)
	}
	if r.Status != domain.ReceiptStatus {
		t.Errorf("status = %q, want %q", r.Status, domain.ReceiptStatus)
	}
	if sr.Signature != "sig-test" {
		t.Errorf("signature = %q", sr.Signature)
	}
}

func TestIssue_IdempotentReplay(t *testing.T) {
	canonical := &domain.SignedReceipt{
		Receipt:   domain.Receipt{IntentID: "abc-1", OrderID: "order-first", Status: domain.ReceiptStatus},
		Signature: "sig-first",
	}
	receipts := &mockReceipts{
		findFn: func(_ context.Context, intentID string) (*domain.SignedReceipt, error) {
			if intentID != "abc-1" {
				t.Errorf("lookup intentId = %q", intentID)
			}
			return canonical, nil
		},
	}
	limiter := &mockLimiter{allowFn: func(context.Context, string) bool {
		t.Fatal("limiter must not be consulted for a resolved intent")
		return false
	}}
	svc := New(receipts, limiter, &mockSigner{}, zap.NewNop())

	// Same intentId, different payload: the stored receipt wins untouched.
	intent := validIntent()
	intent.Payload.Amount = 999

	sr, err := svc.Issue(context.Background(), "10.0.0.1", intent)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if sr != canonical {
		t.Error("expected the stored receipt, not a fresh one")
	}
}

func TestIssue_RateLimited(t *testing.T) {
	limiter := &mockLimiter{allowFn: func(context.Context, string) bool { return false }}
	svc := New(emptyStore(), limiter, &mockSigner{}, zap.NewNop())

	_, err := svc.Issue(context.Background(), "10.0.0.1", validIntent())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestIssue_Validation(t *testing.T) {
	svc := New(emptyStore(), allowAll(), &mockSigner{}, zap.NewNop())

	cases := []struct {
		name   string
		mutate func(*domain.PurchaseIntent)
		want   error
	}{
		{"missing intentId", func(i *domain.PurchaseIntent) { i.IntentID = "" }, domain.ErrInvalidFormat},
		{"missing payload", func(i *domain.PurchaseIntent) { i.Payload = nil }, domain.ErrInvalidFormat},
		{"zero amount", func(i *domain.PurchaseIntent) { i.Payload.Amount = 0 }, domain.ErrInvalidPayload},
		{"bad currency", func(i *domain.PurchaseIntent) { i.Payload.Currency = "DOLLARS" }, domain.ErrInvalidPayload},
		{"missing item", func(i *domain.PurchaseIntent) { i.Payload.ItemID = "" }, domain.ErrInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intent := validIntent()
			tc.mutate(&intent)
			_, err := svc.Issue(context.Background(), "10.0.0.1", intent)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestIssue_LookupErrorPropagates(t *testing.T) {
	storeErr := errors.New("store unreachable")
	receipts := &mockReceipts{
		findFn: func(context.Context, string) (*domain.SignedReceipt, error) {
			return nil, storeErr
		},
	}
	svc := New(receipts, allowAll(), &mockSigner{}, zap.NewNop())

	_, err := svc.Issue(context.Background(), "10.0.0.1", validIntent())
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want the store error surfaced", err)
	}
}

func TestIssue_SigningFailurePersistsNothing(t *testing.T) {
	created := false
	receipts := emptyStore()
	receipts.createFn = func(_ context.Context, _ string, sr *domain.SignedReceipt) (*domain.SignedReceipt, bool, error) {
		created = true
		return sr, true, nil
	}
	signer := &mockSigner{signFn: func(any) (string, error) {
		return "", errors.New("key unavailable")
	}}
	svc := New(receipts, allowAll(), signer, zap.NewNop())

	_, err := svc.Issue(context.Background(), "10.0.0.1", validIntent())
	if err == nil {
		t.Fatal("expected signing error")
	}
	if created {
		t.Error("nothing must be persisted when signing fails")
	}
}

func TestIssue_LosesCreateRace(t *testing.T) {
	winner := &domain.SignedReceipt{
		Receipt:   domain.Receipt{IntentID: "abc-1", OrderID: "order-winner", Status: domain.ReceiptStatus},
		Signature: "sig-winner",
	}
	receipts := emptyStore()
	receipts.createFn = func(context.Context, string, *domain.SignedReceipt) (*domain.SignedReceipt, bool, error) {
		return winner, false, nil
	}
	svc := New(receipts, allowAll(), &mockSigner{}, zap.NewNop())

	sr, err := svc.Issue(context.Background(), "10.0.0.1", validIntent())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if sr != winner {
		t.Error("expected the race winner's receipt")
	}
}

func TestIssue_PersistErrorPropagates(t *testing.T) {
	receipts := emptyStore()
	receipts.createFn = func(context.Context, string, *domain.SignedReceipt) (*domain.SignedReceipt, bool, error) {
		return nil, false, errors.New("write failed")
	}
	svc := New(receipts, allowAll(), &mockSigner{}, zap.NewNop())

	if _, err := svc.Issue(context.Background(), "10.0.0.1", validIntent()); err == nil {
		t.Fatal("expected persist error")
	}
}
