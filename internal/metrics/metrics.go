package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Syncer counters and histograms, partitioned by chain where the work is
// chain-scoped.

var (
	// Store
	StoreWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "store",
		Name:      "writes_total",
		Help:      "Total committed store write transactions",
	})

	StoreWriteAborts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "store",
		Name:      "write_aborts_total",
		Help:      "Total store write transactions discarded by callback error",
	})

	// Executor
	ExecutorTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "executor",
		Name:      "ticks_total",
		Help:      "Total executor ticks",
	})

	ExecutorHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "executor",
		Name:      "handler_errors_total",
		Help:      "Total handler errors contained by the executor",
	}, []string{"task"})

	ExecutorTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "oracle",
		Subsystem: "executor",
		Name:      "tasks",
		Help:      "Registered task instances",
	})

	ExecutorHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oracle",
		Subsystem: "executor",
		Name:      "handler_duration_seconds",
		Help:      "Handler invocation duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	}, []string{"task"})

	// Update fetcher
	UpdateFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "update",
		Name:      "fetches_total",
		Help:      "Total update fetch operations committed to the store",
	}, []string{"chain", "op"})

	UpdateErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "update",
		Name:      "errors_total",
		Help:      "Total update fetch operations that failed",
	}, []string{"chain", "op"})

	UpdateLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oracle",
		Subsystem: "update",
		Name:      "fetch_duration_seconds",
		Help:      "Update fetch duration including the store write",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"chain", "op"})

	// Events
	EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "events",
		Name:      "applied_total",
		Help:      "Total oracle events folded into request records",
	}, []string{"chain"})

	EventCheckpoint = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "oracle",
		Subsystem: "events",
		Name:      "checkpoint_block",
		Help:      "Last block fully scanned for oracle events",
	}, []string{"chain"})

	// RPC
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total JSON-RPC calls by method and status",
	}, []string{"chain", "method", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total RPC calls delayed by the rate limiter",
	}, []string{"chain"})

	RPCCircuitOpen = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "rpc",
		Name:      "circuit_open_total",
		Help:      "Total RPC calls rejected by an open circuit breaker",
	}, []string{"chain"})

	// Stream
	StreamPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "stream",
		Name:      "messages_published_total",
		Help:      "Total event messages published to the stream transport",
	}, []string{"stream"})

	StreamPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oracle",
		Subsystem: "stream",
		Name:      "publish_errors_total",
		Help:      "Total failed stream publishes",
	}, []string{"stream"})
)
