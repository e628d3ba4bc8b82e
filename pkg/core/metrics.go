package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "memolite"

// Metrics holds the Prometheus collectors updated by a Client.
//
// Collectors are registered on the registerer given to NewMetrics, so
// several clients in one process (and parallel tests) never collide on the
// global registry.
type Metrics struct {
	// RecordsFiled counts records filed by the priority classifier.
	// Labels: tier (HIGH, MEDIUM, LOW)
	RecordsFiled *prometheus.CounterVec

	// ConflictResolutions counts version manager outcomes.
	// Labels: outcome (created, user_override, higher_confidence, ...)
	ConflictResolutions *prometheus.CounterVec

	// Rollbacks counts rollback attempts.
	// Labels: result (success, failure)
	Rollbacks *prometheus.CounterVec

	// DecayedRecords counts records whose importance was decayed.
	DecayedRecords prometheus.Counter

	// Searches counts semantic searches.
	Searches prometheus.Counter

	// IndexEntries tracks the number of entries in the semantic index.
	IndexEntries prometheus.Gauge

	// Writes counts writes made through the writer.
	// Labels: strategy (realtime, batch, event, feedback)
	Writes *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg creates the collectors without registering them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RecordsFiled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_filed_total",
			Help:      "Records filed into each priority tier",
		}, []string{"tier"}),
		ConflictResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conflict_resolutions_total",
			Help:      "Versioned writes by resolution outcome",
		}, []string{"outcome"}),
		Rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rollbacks_total",
			Help:      "Rollback attempts by result",
		}, []string{"result"}),
		DecayedRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decayed_records_total",
			Help:      "Records whose importance was lowered by time decay",
		}),
		Searches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "searches_total",
			Help:      "Semantic searches served",
		}),
		IndexEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "semantic_index_entries",
			Help:      "Entries held by the semantic index",
		}),
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "writes_total",
			Help:      "Writes made through the writer by strategy",
		}, []string{"strategy"}),
	}
}
