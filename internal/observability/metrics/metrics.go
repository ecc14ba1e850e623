// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "conversation_analytics"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Conversation metrics
	ConversationsTotal   *prometheus.CounterVec
	ConversationsActive  prometheus.Gauge
	ConversationDuration prometheus.Histogram

	// Engine metrics
	TurnsTotal       *prometheus.CounterVec
	WordsTotal       prometheus.Counter
	TurnSentiment    *prometheus.CounterVec
	EntitiesAccepted *prometheus.CounterVec
	StageLatency     *prometheus.HistogramVec

	// NLP metrics
	NLPCalls   *prometheus.CounterVec
	NLPErrors  *prometheus.CounterVec
	NLPLatency *prometheus.HistogramVec

	// Bulk entity job metrics
	BulkJobsTotal   *prometheus.CounterVec
	BulkJobDuration prometheus.Histogram

	// Kafka metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
	KafkaConsumed       *prometheus.CounterVec

	// Storage metrics
	StorageOps *prometheus.CounterVec

	// RPC metrics
	RPCTotal   *prometheus.CounterVec
	RPCLatency *prometheus.HistogramVec

	// Backpressure metrics
	LimitExceeded *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConversationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Total number of conversations processed by outcome",
		}, []string{"status"}),
		ConversationsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversations_active",
			Help:      "Number of conversations currently being processed",
		}),
		ConversationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_processing_seconds",
			Help:      "Wall time spent processing one conversation",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300, 900},
		}),

		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns produced",
		}, []string{"mode"}),
		WordsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_total",
			Help:      "Total number of words extracted",
		}),
		TurnSentiment: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_sentiment_total",
			Help:      "Turns by assigned sentiment",
		}, []string{"sentiment"}),
		EntitiesAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_accepted_total",
			Help:      "Entities attached to turns by detection source",
		}, []string{"source"}),
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of each engine stage",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 300},
		}, []string{"stage"}),

		NLPCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nlp_calls_total",
			Help:      "Total number of NLP service calls",
		}, []string{"operation"}),
		NLPErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nlp_errors_total",
			Help:      "Total number of failed NLP service calls",
		}, []string{"operation"}),
		NLPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nlp_latency_seconds",
			Help:      "NLP service call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"operation"}),

		BulkJobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_entity_jobs_total",
			Help:      "Bulk entity detection jobs by terminal status",
		}, []string{"status"}),
		BulkJobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_entity_job_seconds",
			Help:      "Time from bulk job submission to terminal state",
			Buckets:   []float64{30, 60, 120, 300, 600, 900, 1800},
		}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
		KafkaConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_consumed_total",
			Help:      "Kafka messages consumed by handling result",
		}, []string{"topic", "result"}),

		StorageOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Object storage operations by result",
		}, []string{"operation", "result"}),

		RPCTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_total",
			Help:      "gRPC calls by method and status code",
		}, []string{"method", "code"}),
		RPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "gRPC call latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"method"}),

		LimitExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limit_exceeded_total",
			Help:      "Total number of times processing limits were exceeded",
		}, []string{"limit_type"}),
	}
}

// RecordConversationStart records a conversation entering the pipeline.
func (m *Metrics) RecordConversationStart() {
	m.ConversationsActive.Inc()
}

// RecordConversationEnd records a conversation leaving the pipeline.
func (m *Metrics) RecordConversationEnd(success bool, durationSeconds float64) {
	m.ConversationsActive.Dec()
	m.ConversationDuration.Observe(durationSeconds)
	if success {
		m.ConversationsTotal.WithLabelValues("processed").Inc()
	} else {
		m.ConversationsTotal.WithLabelValues("failed").Inc()
	}
}

// RecordTurns records the turns and words produced for one conversation.
func (m *Metrics) RecordTurns(mode string, turns, words int) {
	m.TurnsTotal.WithLabelValues(mode).Add(float64(turns))
	m.WordsTotal.Add(float64(words))
}

// RecordSentiment records one classified turn.
func (m *Metrics) RecordSentiment(sentiment string) {
	m.TurnSentiment.WithLabelValues(sentiment).Inc()
}

// RecordEntities records entities accepted from a detection source.
func (m *Metrics) RecordEntities(source string, n int) {
	if n > 0 {
		m.EntitiesAccepted.WithLabelValues(source).Add(float64(n))
	}
}

// RecordStage records the latency of an engine stage.
func (m *Metrics) RecordStage(stage string, latencySeconds float64) {
	m.StageLatency.WithLabelValues(stage).Observe(latencySeconds)
}

// RecordNLPCall records an NLP service call.
func (m *Metrics) RecordNLPCall(operation string, err error, latencySeconds float64) {
	m.NLPCalls.WithLabelValues(operation).Inc()
	m.NLPLatency.WithLabelValues(operation).Observe(latencySeconds)
	if err != nil {
		m.NLPErrors.WithLabelValues(operation).Inc()
	}
}

// RecordBulkJob records a bulk entity job reaching a terminal state.
func (m *Metrics) RecordBulkJob(status string, durationSeconds float64) {
	m.BulkJobsTotal.WithLabelValues(status).Inc()
	m.BulkJobDuration.Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordKafkaConsume records a consumed message and how it was handled.
func (m *Metrics) RecordKafkaConsume(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.KafkaConsumed.WithLabelValues(topic, result).Inc()
}

// RecordStorage records an object storage operation.
func (m *Metrics) RecordStorage(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StorageOps.WithLabelValues(operation, result).Inc()
}

// RecordRPC records a completed gRPC call.
func (m *Metrics) RecordRPC(method, code string, latencySeconds float64) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(latencySeconds)
}

// RecordLimitExceeded records a processing limit being exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.LimitExceeded.WithLabelValues(limitType).Inc()
}
