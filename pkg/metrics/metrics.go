// Package metrics provides Prometheus metrics for the Keel service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConsortiumSavesTotal tracks persisted consortium saves
	ConsortiumSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "consolidation",
			Name:      "consortium_saves_total",
			Help:      "Total number of consortium saves by kind",
		},
		[]string{"tenant_id", "kind"},
	)

	// ServiceClonesTotal tracks services cloned during conversion
	ServiceClonesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "consolidation",
			Name:      "service_clones_total",
			Help:      "Total number of services cloned for additional carriers",
		},
		[]string{"tenant_id"},
	)

	// ItinerarySavesTotal tracks persisted itinerary saves
	ItinerarySavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "voyage",
			Name:      "itinerary_saves_total",
			Help:      "Total number of itinerary saves by kind",
		},
		[]string{"tenant_id", "kind"},
	)

	// GraphProjectionsTotal tracks graph projection attempts
	GraphProjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "graph",
			Name:      "projections_total",
			Help:      "Total number of graph projection attempts",
		},
		[]string{"status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keel",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"event_type", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "keel",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
)

// RecordConsortiumSave records a consortium create or update
func RecordConsortiumSave(tenantID string, isNew bool) {
	ConsortiumSavesTotal.WithLabelValues(tenantID, saveKind(isNew)).Inc()
}

// RecordServiceClone records one clone created during conversion
func RecordServiceClone(tenantID string) {
	ServiceClonesTotal.WithLabelValues(tenantID).Inc()
}

// RecordItinerarySave records an itinerary create or update
func RecordItinerarySave(tenantID string, isNew bool) {
	ItinerarySavesTotal.WithLabelValues(tenantID, saveKind(isNew)).Inc()
}

// RecordGraphProjection records a graph projection attempt
func RecordGraphProjection(status string) {
	GraphProjectionsTotal.WithLabelValues(status).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(eventType, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(eventType, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

func saveKind(isNew bool) string {
	if isNew {
		return "create"
	}
	return "update"
}
