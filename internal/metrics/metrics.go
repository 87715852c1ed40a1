package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	// Proxy request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Payment metrics
	PaymentsTotal       *prometheus.CounterVec
	PaymentsFailedTotal *prometheus.CounterVec
	PaymentAmountTotal  *prometheus.CounterVec
	VerifyDuration      *prometheus.HistogramVec
	SettlementsTotal    *prometheus.CounterVec
	SettlementDuration  *prometheus.HistogramVec

	// Upstream metrics
	UpstreamDuration    *prometheus.HistogramVec
	UpstreamErrorsTotal *prometheus.CounterVec

	// Paywall metrics
	PaywallRendersTotal *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay402_requests_total",
				Help: "Total number of proxy requests",
			},
			[]string{"tenant", "endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay402_request_duration_seconds",
				Help:    "End to end proxy request duration (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tenant", "endpoint"},
		),

		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay402_payments_total",
				Help: "Total number of verified payments",
			},
			[]string{"tenant", "network"},
		),
		PaymentsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay402_payments_failed_total",
				Help: "Total number of rejected or failed payments",
			},
			[]string{"tenant", "reason"},
		),
		PaymentAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay402_payment_amount_atomic_total",
				Help: "Total settled payment amount in atomic USDC units",
			},
			[]string{"tenant", "network"},
		),
		VerifyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay402_verify_duration_seconds",
				Help:    "Facilitator verify call duration",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"network"},
		),
		SettlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay402_settlements_total",
				Help: "Total number of settlement attempts",
			},
			[]string{"network", "status"},
		),
		SettlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay402_settlement_duration_seconds",
				Help:    "Facilitator settle call duration",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"network"},
		),

		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay402_upstream_duration_seconds",
				Help:    "Upstream request duration (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tenant", "endpoint"},
		),
		UpstreamErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay402_upstream_errors_total",
				Help: "Total number of failed upstream requests",
			},
			[]string{"tenant", "endpoint"},
		),

		PaywallRendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay402_paywall_renders_total",
				Help: "Total number of browser paywall pages served",
			},
			[]string{"tenant", "endpoint"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay402_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"limit_type", "tenant"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay402_db_query_duration_seconds",
				Help:    "Database query duration (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"operation", "backend"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay402_db_connections_active",
				Help: "Number of active database connections",
			},
		),
	}
}

// ObserveRequest records a completed proxy request.
func (m *Metrics) ObserveRequest(tenant, endpoint, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(tenant, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(tenant, endpoint).Observe(duration.Seconds())
}

// ObservePayment records a verified payment.
func (m *Metrics) ObservePayment(tenant, network string, amountAtomic int64) {
	m.PaymentsTotal.WithLabelValues(tenant, network).Inc()
	m.PaymentAmountTotal.WithLabelValues(tenant, network).Add(float64(amountAtomic))
}

// ObservePaymentFailure records a rejected or failed payment with reason.
func (m *Metrics) ObservePaymentFailure(tenant, reason string) {
	m.PaymentsFailedTotal.WithLabelValues(tenant, reason).Inc()
}

// ObserveVerify records a facilitator verify call.
func (m *Metrics) ObserveVerify(network string, duration time.Duration) {
	m.VerifyDuration.WithLabelValues(network).Observe(duration.Seconds())
}

// ObserveSettlement records a facilitator settle call and its outcome.
func (m *Metrics) ObserveSettlement(network string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.SettlementsTotal.WithLabelValues(network, status).Inc()
	m.SettlementDuration.WithLabelValues(network).Observe(duration.Seconds())
}

// ObserveUpstream records an upstream request.
func (m *Metrics) ObserveUpstream(tenant, endpoint string, duration time.Duration, err error) {
	m.UpstreamDuration.WithLabelValues(tenant, endpoint).Observe(duration.Seconds())
	if err != nil {
		m.UpstreamErrorsTotal.WithLabelValues(tenant, endpoint).Inc()
	}
}

// ObservePaywallRender records a browser paywall page render.
func (m *Metrics) ObservePaywallRender(tenant, endpoint string) {
	m.PaywallRendersTotal.WithLabelValues(tenant, endpoint).Inc()
}

// ObserveRateLimit records a rate limit hit.
func (m *Metrics) ObserveRateLimit(limitType, tenant string) {
	m.RateLimitHitsTotal.WithLabelValues(limitType, tenant).Inc()
}

// ObserveDBQuery records a database query.
func (m *Metrics) ObserveDBQuery(operation, backend string, duration time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}
