// Package metrics : счётчики Prometheus шлюза. Все методы безопасны для nil,
// компоненты работают и без метрик (в тестах)
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wopi_gateway"

type Metrics struct {
	registry *prometheus.Registry

	wopiOperations         *prometheus.CounterVec
	authAttempts           *prometheus.CounterVec
	discoveryCacheAge      prometheus.Gauge
	discoveryFetchFailures prometheus.Counter
	discoveryFetches       prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		wopiOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wopi_operations_total",
			Help:      "WOPI операции по типу и HTTP статусу ответа.",
		}, []string{"operation", "status"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Попытки входа по источнику и результату.",
		}, []string{"source", "result"}),
		discoveryCacheAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovery_cache_age_seconds",
			Help:      "Возраст закешированного discovery документа.",
		}),
		discoveryFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_fetch_failures_total",
			Help:      "Неудачные загрузки discovery документа.",
		}),
		discoveryFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_fetches_total",
			Help:      "Успешные загрузки discovery документа.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.wopiOperations,
		m.authAttempts,
		m.discoveryCacheAge,
		m.discoveryFetchFailures,
		m.discoveryFetches,
	)
	return m
}

// Handler : /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveWOPI(operation string, status int) {
	if m == nil {
		return
	}
	m.wopiOperations.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveAuth(source, result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(source, result).Inc()
}

func (m *Metrics) SetDiscoveryCacheAge(age time.Duration) {
	if m == nil {
		return
	}
	m.discoveryCacheAge.Set(age.Seconds())
}

func (m *Metrics) DiscoveryFetched() {
	if m == nil {
		return
	}
	m.discoveryFetches.Inc()
}

func (m *Metrics) DiscoveryFetchFailed() {
	if m == nil {
		return
	}
	m.discoveryFetchFailures.Inc()
}
