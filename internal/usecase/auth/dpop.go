package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grahmos/edge-gateway/internal/domain"
	"github.com/grahmos/edge-gateway/internal/sign"
)

// dpopTyp is the required typ header of a possession proof (RFC 9449).
const dpopTyp = "dpop+jwt"

// proofClaims is the claim set a proof must carry.
type proofClaims struct {
	JTI string `json:"jti"`
	HTM string `json:"htm"`
	HTU string `json:"htu"`
	IAT int64  `json:"iat"`
}

// VerifyProof validates a self-signed possession proof against the current
// request and returns the thumbprint of the proof key. Any structural,
// cryptographic, temporal, or replay failure maps to ErrDPoPInvalid.
func (s *Service) VerifyProof(ctx context.Context, proof, method, htu string) (string, error) {
	if proof == "" {
		return "", fmt.Errorf("%w: missing proof", domain.ErrDPoPInvalid)
	}

	pub, claims, err := parseProof(proof)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDPoPInvalid, err)
	}

	if claims.HTM != method {
		return "", fmt.Errorf("%w: proof bound to method %q, request is %q",
			domain.ErrDPoPInvalid, claims.HTM, method)
	}
	if normalizeHTU(claims.HTU) != normalizeHTU(htu) {
		return "", fmt.Errorf("%w: proof bound to a different URL", domain.ErrDPoPInvalid)
	}

	drift := time.Since(time.Unix(claims.IAT, 0))
	if drift > s.skew || drift < -s.skew {
		return "", fmt.Errorf("%w: proof timestamp outside acceptance window", domain.ErrDPoPInvalid)
	}

	if claims.JTI == "" {
		return "", fmt.Errorf("%w: missing proof identifier", domain.ErrDPoPInvalid)
	}
	fresh, err := s.replays.MarkSeen(ctx, claims.JTI)
	if err != nil {
		// Fail closed: an unverifiable replay guard must not admit proofs.
		return "", fmt.Errorf("%w: replay guard unavailable: %w", domain.ErrDPoPInvalid, err)
	}
	if !fresh {
		return "", fmt.Errorf("%w: proof identifier already used", domain.ErrDPoPInvalid)
	}

	thumbprint, err := sign.Thumbprint(pub)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDPoPInvalid, err)
	}
	return thumbprint, nil
}

// parseProof verifies the proof's own signature against the embedded public
// key and extracts the bound claims.
func parseProof(proof string) (ed25519.PublicKey, *proofClaims, error) {
	var pub ed25519.PublicKey

	raw := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(proof, raw,
		func(t *jwt.Token) (any, error) {
			key, kerr := keyFromHeader(t.Header)
			if kerr != nil {
				return nil, kerr
			}
			pub = key
			return key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		// Proofs carry iat only; the acceptance window is enforced by the
		// caller, not the default claim validator.
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, nil, err
	}

	if typ, _ := token.Header["typ"].(string); typ != dpopTyp {
		return nil, nil, fmt.Errorf("proof typ must be %q", dpopTyp)
	}

	claims := &proofClaims{}
	claims.JTI, _ = raw["jti"].(string)
	claims.HTM, _ = raw["htm"].(string)
	claims.HTU, _ = raw["htu"].(string)
	switch iat := raw["iat"].(type) {
	case float64:
		claims.IAT = int64(iat)
	default:
		return nil, nil, fmt.Errorf("proof iat is required")
	}

	return pub, claims, nil
}

// keyFromHeader extracts the Ed25519 public key from the proof's jwk header.
func keyFromHeader(header map[string]any) (ed25519.PublicKey, error) {
	jwk, ok := header["jwk"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("proof jwk header is required")
	}

	kty, _ := jwk["kty"].(string)
	crv, _ := jwk["crv"].(string)
	if kty != "OKP" || crv != "Ed25519" {
		return nil, fmt.Errorf("proof key must be OKP/Ed25519, got %s/%s", kty, crv)
	}

	x, _ := jwk["x"].(string)
	raw, err := base64.RawURLEncoding.DecodeString(x)
	if err != nil {
		return nil, fmt.Errorf("proof key x: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("proof key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// normalizeHTU strips query and fragment so proofs bind to scheme://host/path.
func normalizeHTU(htu string) string {
	u, err := url.Parse(htu)
	if err != nil {
		return htu
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
