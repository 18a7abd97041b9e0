// Package metrics exposes Prometheus collectors for vault operations.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"StrategyVault/internal/model"
)

const namespace = "strategyvault"

// Metrics owns its registry so several managers can coexist in one process.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	balance    *prometheus.GaugeVec
	reserve    *prometheus.GaugeVec
	inFlight   *prometheus.GaugeVec
	swaps      *prometheus.CounterVec
	requests   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// New builds the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vault_operations_total",
			Help:      "Vault operations by kind, operation and result.",
		}, []string{"kind", "op", "result"}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_balance",
			Help:      "Tracked balance of each vault in base units.",
		}, []string{"vault", "kind", "asset"}),
		reserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_reserve",
			Help:      "Reserve floor of each vault in base units.",
		}, []string{"vault", "kind"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vault_swap_in_flight",
			Help:      "1 while a vault awaits a swap result.",
		}, []string{"vault", "kind"}),
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keeper_swaps_total",
			Help:      "Swaps settled by the keeper.",
		}, []string{"kind", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the read API.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of read API requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(m.operations, m.balance, m.reserve, m.inFlight, m.swaps, m.requests, m.durations)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveEvent counts evt and, for accepted operations, updates the vault gauges.
func (m *Metrics) ObserveEvent(evt *model.Event) {
	result := "ok"
	if evt.Rejected() {
		result = string(evt.ErrKind)
	}
	m.operations.WithLabelValues(evt.VaultKind, evt.Op, result).Inc()
	if evt.Rejected() {
		return
	}
	m.balance.WithLabelValues(evt.VaultID, evt.VaultKind, evt.Asset).Set(float64(evt.BalanceAfter))
	m.reserve.WithLabelValues(evt.VaultID, evt.VaultKind).Set(float64(evt.ReserveAfter))
	flight := 0.0
	if evt.InFlight {
		flight = 1
	}
	m.inFlight.WithLabelValues(evt.VaultID, evt.VaultKind).Set(flight)
}

// ObserveSwap counts a keeper settlement attempt.
func (m *Metrics) ObserveSwap(kind string, err error) {
	result := "ok"
	if err != nil {
		result = string(model.Kind(err))
	}
	m.swaps.WithLabelValues(kind, result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
