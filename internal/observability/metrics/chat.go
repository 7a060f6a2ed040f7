package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/pulse-assistant/internal/core/domain"
)

// ChatMetrics observes answer turns, lazy index builds and circuit breaker transitions.
type ChatMetrics struct {
	service string

	turnsTotal         *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	retrievedHits      *prometheus.HistogramVec
	noContextTotal     *prometheus.CounterVec
	indexBuildsTotal   *prometheus.CounterVec
	indexBuildDuration *prometheus.HistogramVec
	breakerTransitions *prometheus.CounterVec
}

func NewChatMetrics(service string, registerer prometheus.Registerer) *ChatMetrics {
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Answered turns by retrieval mode and outcome.",
		},
		[]string{"service", "mode", "outcome"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"service", "mode"},
	)
	retrievedHits := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "retrieved_hits",
			Help:      "Distribution of retrieved passages per turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "mode"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "no_context_total",
			Help:      "Turns answered without any retrieved passage.",
		},
		[]string{"service", "mode"},
	)
	indexBuildsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "index_builds_total",
			Help:      "Lazy index builds by mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	indexBuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "index_build_duration_seconds",
			Help:      "Index build duration in seconds.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"service", "mode"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by operation and target state.",
		},
		[]string{"service", "operation", "to"},
	)

	registerer.MustRegister(
		turnsTotal,
		turnDuration,
		retrievedHits,
		noContextTotal,
		indexBuildsTotal,
		indexBuildDuration,
		breakerTransitions,
	)

	return &ChatMetrics{
		service:            service,
		turnsTotal:         turnsTotal,
		turnDuration:       turnDuration,
		retrievedHits:      retrievedHits,
		noContextTotal:     noContextTotal,
		indexBuildsTotal:   indexBuildsTotal,
		indexBuildDuration: indexBuildDuration,
		breakerTransitions: breakerTransitions,
	}
}

func (m *ChatMetrics) ObserveTurn(mode domain.RetrievalMode, outcome domain.AnswerOutcome, hits int, duration time.Duration) {
	m.turnsTotal.WithLabelValues(m.service, string(mode), string(outcome)).Inc()
	m.turnDuration.WithLabelValues(m.service, string(mode)).Observe(duration.Seconds())
	m.retrievedHits.WithLabelValues(m.service, string(mode)).Observe(float64(hits))
	if hits == 0 {
		m.noContextTotal.WithLabelValues(m.service, string(mode)).Inc()
	}
}

func (m *ChatMetrics) ObserveIndexBuild(mode domain.RetrievalMode, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.indexBuildsTotal.WithLabelValues(m.service, string(mode), status).Inc()
	m.indexBuildDuration.WithLabelValues(m.service, string(mode)).Observe(duration.Seconds())
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *ChatMetrics) ObserveBreakerState(operation, _, to string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, to).Inc()
}
