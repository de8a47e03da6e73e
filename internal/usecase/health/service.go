// Package health aggregates liveness checks for the edge node.
package health

import (
	"context"

	"github.com/grahmos/edge-gateway/internal/domain"
)

// DBPinger checks store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BackendProber reports search backend status.
type BackendProber interface {
	Status(ctx context.Context) domain.BackendStatus
}

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	backend BackendProber
}

// New creates a Service. backend can be nil.
func New(db DBPinger, backend BackendProber) *Service {
	return &Service{db: db, backend: backend}
}

// Check runs health checks against the store and the search backend.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["store"] = CheckError
	} else {
		checks["store"] = CheckOK
	}

	if s.backend != nil {
		if st := s.backend.Status(ctx); st.Healthy {
			checks["backend"] = CheckOK
		} else {
			checks["backend"] = CheckError
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
