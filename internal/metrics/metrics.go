package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for draftgate.
// Every recording method is safe to call on a nil receiver.
type Metrics struct {
	// Revision pipeline
	RevisionOutcomes *prometheus.CounterVec
	RevisionDuration *prometheus.HistogramVec

	// Quality gate
	JudgeDecisions *prometheus.CounterVec
	JudgeScores    prometheus.Histogram

	// Structured model calls
	LLMRequests *prometheus.CounterVec
	LLMLatency  *prometheus.HistogramVec
	LLMTokens   *prometheus.CounterVec

	// Context assembly
	ContextTokens *prometheus.HistogramVec

	// Memory governance
	MemoryProposals *prometheus.CounterVec

	// Background jobs
	JobsProcessed *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			RevisionOutcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "draftgate_revision_outcomes_total",
					Help: "Revision attempts by outcome",
				},
				[]string{"channel", "outcome"},
			),
			RevisionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "draftgate_revision_duration_seconds",
					Help:    "Wall-clock duration of revision attempts",
					Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2min
				},
				[]string{"channel", "outcome"},
			),
			JudgeDecisions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "draftgate_judge_decisions_total",
					Help: "Quality gate decisions",
				},
				[]string{"pass", "adjudicated"},
			),
			JudgeScores: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "draftgate_judge_overall_score",
					Help:    "Overall quality gate score",
					Buckets: prometheus.LinearBuckets(10, 10, 10),
				},
			),
			LLMRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "draftgate_llm_requests_total",
					Help: "Structured prompt runs by prompt key and result",
				},
				[]string{"prompt_key", "model", "result"},
			),
			LLMLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "draftgate_llm_latency_seconds",
					Help:    "Structured prompt latency",
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
				},
				[]string{"prompt_key", "model"},
			),
			LLMTokens: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "draftgate_llm_tokens_total",
					Help: "Tokens consumed by structured prompt runs",
				},
				[]string{"prompt_key", "model", "type"},
			),
			ContextTokens: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "draftgate_context_tokens_estimated",
					Help:    "Estimated tokens of assembled context blocks",
					Buckets: prometheus.ExponentialBuckets(50, 2, 10),
				},
				[]string{"profile", "kind"},
			),
			MemoryProposals: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "draftgate_memory_proposals_total",
					Help: "Memory proposals by governance result",
				},
				[]string{"result"},
			),
			JobsProcessed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "draftgate_jobs_processed_total",
					Help: "Background jobs processed",
				},
				[]string{"queue", "result"},
			),
		}
	})
	return sharedMetrics
}

// RecordRevision records the outcome of one revision attempt
func (m *Metrics) RecordRevision(channel, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RevisionOutcomes.WithLabelValues(channel, outcome).Inc()
	m.RevisionDuration.WithLabelValues(channel, outcome).Observe(duration.Seconds())
}

// RecordJudge records one quality gate decision
func (m *Metrics) RecordJudge(pass, adjudicated bool, overall float64) {
	if m == nil {
		return
	}
	m.JudgeDecisions.WithLabelValues(strconv.FormatBool(pass), strconv.FormatBool(adjudicated)).Inc()
	m.JudgeScores.Observe(overall)
}

// RecordLLMCall records a structured prompt run
func (m *Metrics) RecordLLMCall(promptKey, model, result string, latency time.Duration, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(promptKey, model, result).Inc()
	m.LLMLatency.WithLabelValues(promptKey, model).Observe(latency.Seconds())
	if inputTokens > 0 {
		m.LLMTokens.WithLabelValues(promptKey, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokens.WithLabelValues(promptKey, model, "output").Add(float64(outputTokens))
	}
}

// RecordContextTokens records the estimated size of an assembled context block
func (m *Metrics) RecordContextTokens(profile, kind string, tokens int) {
	if m == nil {
		return
	}
	m.ContextTokens.WithLabelValues(profile, kind).Observe(float64(tokens))
}

// RecordMemoryProposals records governance results
func (m *Metrics) RecordMemoryProposals(approved, pending, dropped int) {
	if m == nil {
		return
	}
	m.MemoryProposals.WithLabelValues("approved").Add(float64(approved))
	m.MemoryProposals.WithLabelValues("pending").Add(float64(pending))
	m.MemoryProposals.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordJob records a processed background job
func (m *Metrics) RecordJob(queue, result string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(queue, result).Inc()
}
