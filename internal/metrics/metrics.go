// Package metrics exports interview session metrics for Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/satriahrh/mockinterview/domain"
	"github.com/satriahrh/mockinterview/domain/entities"
	"github.com/satriahrh/mockinterview/internal/notify"
	"github.com/satriahrh/mockinterview/usecase"
)

// Source is the session being observed
type Source interface {
	SubscribeSnapshots(handler notify.Handler[usecase.Snapshot]) (unsubscribe func())
	SubscribeNotices(handler notify.Handler[domain.Notice]) (unsubscribe func())
}

// Metrics holds the collectors of one session on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Turns      *prometheus.CounterVec
	Notices    *prometheus.CounterVec
	Processing prometheus.Gauge
	Elapsed    prometheus.Gauge
	Active     prometheus.Gauge

	mu    sync.Mutex
	turns int
}

// New creates the collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mockinterview_turns_total",
				Help: "Transcript turns appended, by speaker",
			},
			[]string{"speaker"},
		),
		Notices: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mockinterview_notices_total",
				Help: "User-visible notices, by level and code",
			},
			[]string{"level", "code"},
		),
		Processing: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mockinterview_processing",
				Help: "1 while a response stream is in flight",
			},
		),
		Elapsed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mockinterview_elapsed_seconds",
				Help: "Elapsed interview time",
			},
		),
		Active: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mockinterview_session_active",
				Help: "1 while the session is active",
			},
		),
	}
}

// RegisterClientCount exports the number of connected renderers
func (m *Metrics) RegisterClientCount(count func() int) {
	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mockinterview_renderer_clients",
			Help: "Connected renderer clients",
		},
		func() float64 { return float64(count()) },
	)
}

// Observe subscribes to source and returns the unsubscribe function
func (m *Metrics) Observe(source Source) (stop func()) {
	stopSnapshots := source.SubscribeSnapshots(m.snapshot)
	stopNotices := source.SubscribeNotices(func(notice domain.Notice) {
		m.Notices.WithLabelValues(string(notice.Level), notice.Code).Inc()
	})
	return func() {
		stopSnapshots()
		stopNotices()
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) snapshot(snapshot usecase.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, turn := range snapshot.Turns[min(m.turns, len(snapshot.Turns)):] {
		m.Turns.WithLabelValues(string(turn.Speaker)).Inc()
	}
	m.turns = len(snapshot.Turns)

	m.Processing.Set(boolValue(snapshot.Processing))
	m.Active.Set(boolValue(snapshot.Status == entities.SessionStatusActive))
	m.Elapsed.Set(float64(snapshot.ElapsedSeconds))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
