package chi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/grahmos/edge-gateway/internal/domain"
	"github.com/grahmos/edge-gateway/internal/metrics"
)

// Proof and terminator assertion headers.
const (
	headerClientVerify      = "X-Client-Verify"
	headerClientFingerprint = "X-Client-Fingerprint"
	headerDPoP              = "DPoP"
	headerForwardedProto    = "X-Forwarded-Proto"
	headerForwardedFor      = "X-Forwarded-For"
)

// RequireToken gates protected routes: verify the bearer token, re-derive a
// possession proof from this request, and require it to match the token's
// cnf binding. A stolen token is useless without the bound key material.
func (s *Server) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authz, bearerPrefix) {
			s.rejectAuth(w, domain.CodeTokenInvalid, "missing bearer token")
			return
		}

		claims, err := s.auth.VerifyToken(authz[len(bearerPrefix):])
		if err != nil {
			s.handleDomainError(w, r, err, domain.CodeTokenError)
			s.countAuthRejection(err)
			return
		}

		proof, err := s.deriveProof(r, claims.Cnf)
		if err != nil {
			s.rejectAuth(w, domain.CodeTokenInvalid, "possession proof missing or invalid")
			return
		}
		if !claims.Cnf.Matches(proof) {
			s.rejectAuth(w, domain.CodeTokenInvalid, "token not bound to presented proof")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// deriveProof reconstructs the possession proof from the current request,
// matching the flavor the token was issued for.
func (s *Server) deriveProof(r *http.Request, cnf domain.Confirmation) (domain.PossessionProof, error) {
	switch {
	case cnf.X5tS256 != "":
		fp := r.Header.Get(headerClientFingerprint)
		if fp == "" {
			return domain.PossessionProof{}, fmt.Errorf("missing certificate fingerprint")
		}
		return domain.PossessionProof{Kind: domain.ProofMTLS, Fingerprint: fp}, nil

	case cnf.JKT != "":
		thumbprint, err := s.auth.VerifyProof(r.Context(),
			r.Header.Get(headerDPoP), r.Method, requestURL(r))
		if err != nil {
			return domain.PossessionProof{}, err
		}
		return domain.PossessionProof{Kind: domain.ProofDPoP, Thumbprint: thumbprint}, nil
	}
	return domain.PossessionProof{}, fmt.Errorf("token carries no binding")
}

func (s *Server) rejectAuth(w http.ResponseWriter, code, message string) {
	metrics.AuthRejectionsTotal.WithLabelValues(code).Inc()
	writeError(w, http.StatusUnauthorized, code, message)
}

func (s *Server) countAuthRejection(err error) {
	code := domain.CodeTokenInvalid
	if errors.Is(err, domain.ErrTokenExpired) {
		code = domain.CodeTokenExpired
	}
	metrics.AuthRejectionsTotal.WithLabelValues(code).Inc()
}

// requestURL reconstructs the URL the client signed proofs against,
// honoring the terminating proxy's forwarded protocol.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get(headerForwardedProto)
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// clientIP is the rate-limit key: first forwarded address when behind the
// terminator, else the peer address without its port.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get(headerForwardedFor); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
