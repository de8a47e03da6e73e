// Package auth issues and verifies possession-bound access tokens. A token
// is only as good as the proof presented with it: every protected request
// re-proves possession and the middleware compares it against the token's
// cnf claim.
package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/grahmos/edge-gateway/internal/domain"
	"github.com/grahmos/edge-gateway/internal/metrics"
)

const (
	// DefaultTokenTTL bounds how long an issued token stays valid.
	DefaultTokenTTL = 300 * time.Second
	// DefaultClockSkew bounds how far a proof timestamp may drift from
	// server time.
	DefaultClockSkew = 60 * time.Second

	// mtlsVerifySuccess is the value a trusted TLS terminator asserts when
	// client certificate verification passed.
	mtlsVerifySuccess = "SUCCESS"
)

// Claims is the access token claim set: registered claims plus the cnf
// binding to a possession proof.
type Claims struct {
	Cnf domain.Confirmation `json:"cnf"`
	jwt.RegisteredClaims
}

// IssuedToken is the issuance response: the token itself plus its TTL and
// binding, surfaced outside the claims for client convenience.
type IssuedToken struct {
	Token string              `json:"token"`
	TTL   int                 `json:"ttl"`
	Cnf   domain.Confirmation `json:"cnf"`
}

// Service implements both token issuance paths and token/proof verification.
// Pure with respect to the store except for the DPoP replay guard; safe
// under unbounded parallelism.
type Service struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	keyID   string
	ttl     time.Duration
	skew    time.Duration
	replays ReplayGuard
	logger  *zap.Logger
}

// New creates an auth service around a pre-provisioned signing key.
func New(priv ed25519.PrivateKey, keyID string, replays ReplayGuard, logger *zap.Logger) *Service {
	s := &Service{
		priv:    priv,
		keyID:   keyID,
		ttl:     DefaultTokenTTL,
		skew:    DefaultClockSkew,
		replays: replays,
		logger:  logger,
	}
	if len(priv) == ed25519.PrivateKeySize {
		s.pub = priv.Public().(ed25519.PublicKey)
	}
	return s
}

// WithTTL overrides the token TTL.
func (s *Service) WithTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// WithClockSkew overrides the accepted proof timestamp drift.
func (s *Service) WithClockSkew(skew time.Duration) *Service {
	if skew > 0 {
		s.skew = skew
	}
	return s
}

// IssueMTLS mints a token bound to a terminator-asserted client certificate.
// verify is the terminator's verification result header, fingerprint the
// certificate's SHA-256 fingerprint.
func (s *Service) IssueMTLS(_ context.Context, verify, fingerprint string) (*IssuedToken, error) {
	if !strings.EqualFold(verify, mtlsVerifySuccess) || fingerprint == "" {
		return nil, fmt.Errorf("%w: terminator did not assert a verified client certificate",
			domain.ErrMTLSRequired)
	}

	proof := domain.PossessionProof{Kind: domain.ProofMTLS, Fingerprint: fingerprint}
	issued, err := s.mint(proof.Confirmation(), fingerprint)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(domain.ProofMTLS)).Inc()
	return issued, nil
}

// IssueDPoP verifies a self-contained possession proof bound to this request
// and mints a token bound to the proof key's thumbprint.
func (s *Service) IssueDPoP(ctx context.Context, proof, method, htu string) (*IssuedToken, error) {
	thumbprint, err := s.VerifyProof(ctx, proof, method, htu)
	if err != nil {
		return nil, err
	}

	issued, err := s.mint(domain.Confirmation{JKT: thumbprint}, thumbprint)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(domain.ProofDPoP)).Inc()
	return issued, nil
}

// mint signs a token binding cnf, returning it with TTL alongside.
func (s *Service) mint(cnf domain.Confirmation, subject string) (*IssuedToken, error) {
	if len(s.priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: signing key not provisioned", domain.ErrTokenIssuance)
	}

	now := time.Now()
	claims := Claims{
		Cnf: cnf,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.priv)
	if err != nil {
		s.logger.Error("token signing failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenIssuance, err)
	}

	return &IssuedToken{
		Token: signed,
		TTL:   int(s.ttl.Seconds()),
		Cnf:   cnf,
	}, nil
}

// VerifyToken checks signature and expiry of a bearer token and returns its
// claims. Binding against the current request's proof is the caller's job.
func (s *Service) VerifyToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return s.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}
	return claims, nil
}
