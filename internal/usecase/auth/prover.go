package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Prover builds possession proofs on the client side. Each proof is bound
// to one method+URL pair and carries a fresh identifier, so it cannot be
// replayed against another request.
type Prover struct {
	priv ed25519.PrivateKey
}

// NewProver wraps a client private key.
func NewProver(priv ed25519.PrivateKey) *Prover {
	return &Prover{priv: priv}
}

// Proof creates a signed proof for the given request.
func (p *Prover) Proof(method, htu string) (string, error) {
	return p.ProofAt(method, htu, uuid.NewString(), time.Now())
}

// ProofAt creates a proof with an explicit identifier and timestamp.
func (p *Prover) ProofAt(method, htu, jti string, at time.Time) (string, error) {
	if len(p.priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("prover key not provisioned")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"jti": jti,
		"htm": method,
		"htu": htu,
		"iat": at.Unix(),
	})
	token.Header["typ"] = dpopTyp
	token.Header["jwk"] = map[string]any{
		"kty": "OKP",
		"crv": "Ed25519",
		"x":   base64.RawURLEncoding.EncodeToString(p.priv.Public().(ed25519.PublicKey)),
	}

	return token.SignedString(p.priv)
}
