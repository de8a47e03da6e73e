package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"go.uber.org/zap"
)

// memReplay is an in-memory replay guard for tests.
type memReplay struct {
	seen map[string]struct{}
	err  error
}

func newMemReplay() *memReplay {
	return &memReplay{seen: make(map[string]struct{})}
}

func (m *memReplay) MarkSeen(_ context.Context, jti string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.seen[jti]; ok {
		return false, nil
	}
	m.seen[jti] = struct{}{}
	return true, nil
}

func newTestService(t *testing.T) (*Service, *memReplay) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	replays := newMemReplay()
	return New(priv, "test-key-1", replays, zap.NewNop()), replays
}

func newClientKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	return priv
}
