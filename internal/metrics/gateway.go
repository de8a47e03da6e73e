package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TokensIssuedTotal counts issued access tokens by proof flavor.
	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "tokens_issued_total",
			Help:      "Access tokens issued, by possession proof kind",
		},
		[]string{"kind"},
	)

	// AuthRejectionsTotal counts rejected authentication attempts by code.
	AuthRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "auth_rejections_total",
			Help:      "Rejected authentication attempts, by error code",
		},
		[]string{"code"},
	)

	// ReceiptsIssuedTotal counts newly minted signed receipts.
	ReceiptsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "receipts_issued_total",
			Help:      "Newly minted signed receipts",
		},
	)

	// IdempotencyHitsTotal counts purchases resolved from the receipt cache.
	IdempotencyHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "idempotency_hits_total",
			Help:      "Purchase requests answered from the receipt cache",
		},
	)

	// RateLimitRejectionsTotal counts purchases rejected by the rate limiter.
	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "rate_limit_rejections_total",
			Help:      "Purchase requests rejected by the rate limiter",
		},
	)

	// RateLimitFailOpenTotal counts rate-limit checks that degraded to allow
	// because the store was unreachable.
	RateLimitFailOpenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "rate_limit_fail_open_total",
			Help:      "Rate-limit checks allowed due to store unavailability",
		},
	)

	// SearchSoftFailTotal counts searches that returned empty results because
	// the backend failed.
	SearchSoftFailTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edge_gateway",
			Name:      "search_soft_fail_total",
			Help:      "Searches downgraded to empty results on backend failure",
		},
	)
)

// RegisterGatewayMetrics registers the domain collectors. Called explicitly
// from the composition root (no init()).
func RegisterGatewayMetrics() {
	prometheus.MustRegister(
		TokensIssuedTotal,
		AuthRejectionsTotal,
		ReceiptsIssuedTotal,
		IdempotencyHitsTotal,
		RateLimitRejectionsTotal,
		RateLimitFailOpenTotal,
		SearchSoftFailTotal,
	)
}
