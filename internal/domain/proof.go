package domain

// ProofKind discriminates the two supported possession proof mechanisms.
type ProofKind string

const (
	// ProofMTLS is a terminator-asserted client certificate fingerprint.
	ProofMTLS ProofKind = "mtls"
	// ProofDPoP is a self-signed proof bound to the request, carrying the
	// client's public key.
	ProofDPoP ProofKind = "dpop"
)

// PossessionProof is the per-request evidence that a client controls a
// private key. Derived from transport headers on every request, never stored.
type PossessionProof struct {
	Kind ProofKind
	// Fingerprint is the SHA-256 certificate fingerprint for mTLS proofs.
	Fingerprint string
	// Thumbprint is the RFC 7638 JWK thumbprint for DPoP proofs.
	Thumbprint string
}

// Confirmation is the token "cnf" claim binding a token to a possession
// proof. Exactly one member is set per token.
type Confirmation struct {
	X5tS256 string `json:"x5t#S256,omitempty"`
	JKT     string `json:"jkt,omitempty"`
}

// Confirmation derives the cnf claim for this proof.
func (p PossessionProof) Confirmation() Confirmation {
	switch p.Kind {
	case ProofMTLS:
		return Confirmation{X5tS256: p.Fingerprint}
	case ProofDPoP:
		return Confirmation{JKT: p.Thumbprint}
	}
	return Confirmation{}
}

// Matches reports whether the proof presented on the current request is the
// one this confirmation was bound to. An empty confirmation matches nothing.
func (c Confirmation) Matches(p PossessionProof) bool {
	switch {
	case c.X5tS256 != "":
		return p.Kind == ProofMTLS && p.Fingerprint == c.X5tS256
	case c.JKT != "":
		return p.Kind == ProofDPoP && p.Thumbprint == c.JKT
	}
	return false
}
