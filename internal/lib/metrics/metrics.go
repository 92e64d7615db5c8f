// Package metrics содержит Prometheus метрики хранилища снимков и HTTP слоя.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "subman"

// Store — метрики записи снимков, размеченные именем хранилища.
type Store struct {
	writes   *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	entities *prometheus.GaugeVec
}

// NewStore создаёт и регистрирует метрики хранилища в reg.
func NewStore(reg prometheus.Registerer) *Store {
	m := &Store{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "writes_total",
			Help:      "Number of successful snapshot writes.",
		}, []string{"store"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "write_failures_total",
			Help:      "Number of failed snapshot writes.",
		}, []string{"store"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "write_duration_seconds",
			Help:      "Time spent writing a snapshot file.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"store"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "entities",
			Help:      "Number of entities in the last written snapshot.",
		}, []string{"store"}),
	}
	reg.MustRegister(m.writes, m.failures, m.duration, m.entities)
	return m
}

// ObserveWrite фиксирует результат одной записи снимка.
func (m *Store) ObserveWrite(store string, entities int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(store).Observe(took.Seconds())
	if err != nil {
		m.failures.WithLabelValues(store).Inc()
		return
	}
	m.writes.WithLabelValues(store).Inc()
	m.entities.WithLabelValues(store).Set(float64(entities))
}

// HTTP — счётчик HTTP запросов.
type HTTP struct {
	requests *prometheus.CounterVec
}

// NewHTTP создаёт и регистрирует HTTP метрики в reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of handled HTTP requests.",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.requests)
	return m
}

// ObserveRequest увеличивает счётчик запросов.
func (m *HTTP) ObserveRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
