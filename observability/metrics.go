package observability

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	gridMetricsOnce sync.Once
	gridRegistry    *GridMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record API
// activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "grid",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "grid",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "grid",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "grid",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// GridMetrics captures economy activity: operations, payouts and the pool.
type GridMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	payouts    *prometheus.CounterVec
	pool       prometheus.Gauge
	positions  *prometheus.GaugeVec
}

// Grid returns the singleton economy metrics registry.
func Grid() *GridMetrics {
	gridMetricsOnce.Do(func() {
		gridRegistry = &GridMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "grid",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Count of economy operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "grid",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for economy operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "grid",
				Subsystem: "engine",
				Name:      "payouts_total",
				Help:      "Sum of paid amounts in base units segmented by kind and asset.",
			}, []string{"kind", "asset"}),
			pool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "grid",
				Subsystem: "engine",
				Name:      "dividend_pool",
				Help:      "Current dividend pool balance in base units.",
			}),
			positions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "grid",
				Subsystem: "engine",
				Name:      "level_members",
				Help:      "Number of accounts classified at each dividend level.",
			}, []string{"level"}),
		}
		prometheus.MustRegister(
			gridRegistry.operations,
			gridRegistry.latency,
			gridRegistry.payouts,
			gridRegistry.pool,
			gridRegistry.positions,
		)
	})
	return gridRegistry
}

// ObserveOperation records the outcome and latency of an economy operation.
func (m *GridMetrics) ObserveOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	operation = normalizeLabel(operation)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPayout adds amount to the payout counter for kind and asset.
func (m *GridMetrics) RecordPayout(kind, asset string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.payouts.WithLabelValues(normalizeLabel(kind), strings.ToUpper(normalizeLabel(asset))).Add(value)
}

// SetPool publishes the current pool balance.
func (m *GridMetrics) SetPool(balance *big.Int) {
	if m == nil || balance == nil {
		return
	}
	value, _ := new(big.Float).SetInt(balance).Float64()
	m.pool.Set(value)
}

// SetLevelMembers publishes the member count of level.
func (m *GridMetrics) SetLevelMembers(level string, count int) {
	if m == nil {
		return
	}
	m.positions.WithLabelValues(normalizeLabel(level)).Set(float64(count))
}

func normalizeLabel(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
