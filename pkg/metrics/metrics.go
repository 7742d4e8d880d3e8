package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rag_stage_latency_ms",
		Help:    "Latency of orchestrator stages in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"stage"})

	questionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rag_question_latency_ms",
		Help:    "End-to-end latency of answered questions in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 90000},
	}, []string{"route"})

	routeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_route_total",
		Help: "Routing decisions by route",
	}, []string{"route"})

	providerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_provider_calls_total",
		Help: "Language model calls by provider and outcome",
	}, []string{"provider", "outcome"})

	selfCheckTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_selfcheck_total",
		Help: "Self-check verdicts",
	}, []string{"verdict"})

	retrievalDegraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_retrieval_degraded_total",
		Help: "Retrievals served without one of the channels",
	}, []string{"channel"})

	retrieverLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rag_retriever_latency_ms",
		Help:    "Latency of retrieval channel calls in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500, 1000, 2500},
	}, []string{"channel"})

	retrieverResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rag_retriever_results",
		Help:    "Number of hits returned by a retrieval channel",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"channel"})

	indexRebuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_index_rebuilds_total",
		Help: "Index rebuild attempts by outcome",
	}, []string{"outcome"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(
			stageLatency, questionLatency, routeTotal, providerCalls,
			selfCheckTotal, retrievalDegraded, retrieverLatency, retrieverResults, indexRebuilds,
		)
	})
}

// ObserveStage records how long an orchestrator stage took.
func ObserveStage(stage string, d time.Duration) {
	ensureRegistered()
	stageLatency.WithLabelValues(stage).Observe(float64(d.Milliseconds()))
}

// ObserveQuestion records end-to-end latency for a route.
func ObserveQuestion(route string, d time.Duration) {
	ensureRegistered()
	questionLatency.WithLabelValues(route).Observe(float64(d.Milliseconds()))
}

// IncRoute counts a routing decision.
func IncRoute(route string) {
	ensureRegistered()
	routeTotal.WithLabelValues(route).Inc()
}

// IncProvider counts a model call; outcome is "ok", "failover" or "failed".
func IncProvider(provider, outcome string) {
	ensureRegistered()
	providerCalls.WithLabelValues(provider, outcome).Inc()
}

// IncSelfCheck counts a self-check verdict.
func IncSelfCheck(passed bool) {
	ensureRegistered()
	verdict := "fail"
	if passed {
		verdict = "pass"
	}
	selfCheckTotal.WithLabelValues(verdict).Inc()
}

// IncDegraded counts a retrieval served without the named channel.
func IncDegraded(channel string) {
	ensureRegistered()
	retrievalDegraded.WithLabelValues(channel).Inc()
}

// ObserveRetriever records latency and result size for a channel.
func ObserveRetriever(channel string, start time.Time, results int) {
	ensureRegistered()
	retrieverLatency.WithLabelValues(channel).Observe(float64(time.Since(start).Milliseconds()))
	retrieverResults.WithLabelValues(channel).Observe(float64(results))
}

// IncRebuild counts an index rebuild outcome: "ok", "failed", "rejected".
func IncRebuild(outcome string) {
	ensureRegistered()
	indexRebuilds.WithLabelValues(outcome).Inc()
}
