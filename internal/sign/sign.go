package sign

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Signer produces detached Ed25519 signatures over canonical JSON.
type Signer struct {
	priv  ed25519.PrivateKey
	keyID string
}

// NewSigner wraps a pre-provisioned private key. keyID is an operator-chosen
// identifier published alongside the public key.
func NewSigner(priv ed25519.PrivateKey, keyID string) *Signer {
	return &Signer{priv: priv, keyID: keyID}
}

// KeyID returns the signer's key identifier.
func (s *Signer) KeyID() string { return s.keyID }

// PublicKey returns the verifying key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// PublicKeyBase64 returns the verifying key in standard base64, the form
// published on the pubkey endpoint.
func (s *Signer) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(s.PublicKey())
}

// Sign canonicalizes v and returns a base64url detached signature.
func (s *Signer) Sign(v any) (string, error) {
	if len(s.priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("signing key not provisioned")
	}
	data, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(s.priv, data)
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks a detached base64url signature against the canonical
// serialization of v.
func Verify(v any, signature string, pub ed25519.PublicKey) bool {
	sig, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	data, err := Canonical(v)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}

// Thumbprint computes the RFC 7638 JWK thumbprint of an Ed25519 public key:
// SHA-256 over the canonical JSON of the required JWK members, base64url.
func Thumbprint(pub ed25519.PublicKey) (string, error) {
	jwk := map[string]string{
		"crv": "Ed25519",
		"kty": "OKP",
		"x":   base64.RawURLEncoding.EncodeToString(pub),
	}
	data, err := Canonical(jwk)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
