// Package chi is the HTTP transport: routing, token gating, and the mapping
// from domain errors to stable machine-readable codes.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/grahmos/edge-gateway/internal/domain"
	"github.com/grahmos/edge-gateway/internal/logger"
	authuc "github.com/grahmos/edge-gateway/internal/usecase/auth"
	healthuc "github.com/grahmos/edge-gateway/internal/usecase/health"
	purchaseuc "github.com/grahmos/edge-gateway/internal/usecase/purchase"
	searchuc "github.com/grahmos/edge-gateway/internal/usecase/search"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMapping pairs a domain sentinel with its transport representation.
type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// Server wires the use case services to HTTP.
type Server struct {
	auth     *authuc.Service
	search   *searchuc.Service
	purchase *purchaseuc.Service
	health   *healthuc.Service
	keyID    string
	pubKey   string
	logger   *zap.Logger
	mappings []errorMapping
}

// NewServer creates the HTTP server. keyID and pubKey are published on the
// pubkey endpoint so receipts stay verifiable offline.
func NewServer(
	auth *authuc.Service,
	search *searchuc.Service,
	purchase *purchaseuc.Service,
	health *healthuc.Service,
	keyID, pubKey string,
	logger *zap.Logger,
) *Server {
	return &Server{
		auth:     auth,
		search:   search,
		purchase: purchase,
		health:   health,
		keyID:    keyID,
		pubKey:   pubKey,
		logger:   logger,
		mappings: []errorMapping{
			{domain.ErrMTLSRequired, http.StatusUnauthorized, domain.CodeMTLSRequired},
			{domain.ErrDPoPInvalid, http.StatusUnauthorized, domain.CodeDPoPInvalid},
			{domain.ErrTokenExpired, http.StatusUnauthorized, domain.CodeTokenExpired},
			{domain.ErrTokenInvalid, http.StatusUnauthorized, domain.CodeTokenInvalid},
			{domain.ErrTokenIssuance, http.StatusInternalServerError, domain.CodeTokenError},
			{domain.ErrInvalidFormat, http.StatusBadRequest, domain.CodeInvalidFormat},
			{domain.ErrInvalidPayload, http.StatusBadRequest, domain.CodeInvalidPayload},
			{domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, domain.CodePayloadTooLarge},
			{domain.ErrRateLimited, http.StatusTooManyRequests, domain.CodeRateLimit},
		},
	}
}

// RegisterRoutes mounts all gateway routes on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/auth/mtls", s.handleMTLSAuth)
	r.Get("/auth/dpop", s.handleDPoPAuth)

	r.Group(func(pr chi.Router) {
		pr.Use(s.RequireToken)
		pr.Get("/search", s.handleSearch)
		pr.Get("/documents/{id}", s.handleDocument)
		pr.Get("/status", s.handleStatus)
	})

	r.Post("/purchase", s.handlePurchase)
	r.Get("/pubkey", s.handlePubkey)
	r.Get("/health", s.handleHealth)
}

func (s *Server) handleMTLSAuth(w http.ResponseWriter, r *http.Request) {
	issued, err := s.auth.IssueMTLS(r.Context(),
		r.Header.Get(headerClientVerify),
		r.Header.Get(headerClientFingerprint),
	)
	if err != nil {
		s.handleDomainError(w, r, err, domain.CodeTokenError)
		return
	}
	writeJSON(w, http.StatusOK, issued)
}

func (s *Server) handleDPoPAuth(w http.ResponseWriter, r *http.Request) {
	issued, err := s.auth.IssueDPoP(r.Context(),
		r.Header.Get(headerDPoP),
		r.Method,
		requestURL(r),
	)
	if err != nil {
		s.handleDomainError(w, r, err, domain.CodeTokenError)
		return
	}
	writeJSON(w, http.StatusOK, issued)
}

type searchResponse struct {
	Results     []domain.SearchResult `json:"results"`
	Total       int                   `json:"total"`
	QueryTimeMS int64                 `json:"query_time_ms"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := domain.SearchQuery{
		Text:   r.URL.Query().Get("q"),
		Limit:  queryInt(r, "k"),
		Offset: queryInt(r, "offset"),
	}

	start := time.Now()
	results := s.search.Search(r.Context(), query)

	writeJSON(w, http.StatusOK, searchResponse{
		Results:     results,
		Total:       len(results),
		QueryTimeMS: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.search.GetDocument(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err, domain.CodeDocError)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, domain.CodeDocNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.search.Status(r.Context()))
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	// Size ceiling first, before any parsing.
	if r.ContentLength > domain.MaxPurchaseBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, domain.CodePayloadTooLarge,
			"request body exceeds 32 KiB ceiling")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxPurchaseBodyBytes)

	var intent domain.PurchaseIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, domain.CodePayloadTooLarge,
				"request body exceeds 32 KiB ceiling")
			return
		}
		s.logger.Debug("purchase body rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, domain.CodeInvalidFormat, "invalid request body")
		return
	}

	sr, err := s.purchase.Issue(r.Context(), clientIP(r), intent)
	if err != nil {
		s.handleDomainError(w, r, err, domain.CodeServerError)
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

type pubkeyResponse struct {
	KeyID     string `json:"keyId"`
	PublicKey string `json:"publicKey"`
}

func (s *Server) handlePubkey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pubkeyResponse{KeyID: s.keyID, PublicKey: s.pubKey})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// handleDomainError maps a domain sentinel to its transport code; unknown
// errors are logged server-side and surfaced generically.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	for _, m := range s.mappings {
		if errors.Is(err, m.sentinel) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	logger.FromContext(r.Context()).Error("unexpected handler error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, fallbackCode, "internal error")
}

func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
