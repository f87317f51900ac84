// Package metrics exposes the gateway's Prometheus metrics: RPC call
// counters, stream queue-depth gauges, circuit-breaker state, and the
// rate-limit latch, served at /metrics alongside the gRPC listener.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RPCCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewayd_rpc_calls_total",
			Help: "RPC calls handled, by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	StreamQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gatewayd_stream_queue_depth",
			Help: "Current depth of a server-streaming RPC's delivery queue.",
		},
		[]string{"venue", "trade_id", "event_key"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gatewayd_circuit_breaker_state",
			Help: "Circuit breaker state per venue (0=closed, 1=half-open, 2=open).",
		},
		[]string{"venue"},
	)

	RateLimitLatched = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gatewayd_rate_limit_latched",
			Help: "Whether a session's rate-limit latch is currently set (1) or clear (0).",
		},
		[]string{"client_id"},
	)
)

func init() {
	prometheus.MustRegister(RPCCalls, StreamQueueDepth, CircuitBreakerState, RateLimitLatched)
}

// ObserveRPC records one RPC call's outcome, "ok" or "error".
func ObserveRPC(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RPCCalls.WithLabelValues(method, outcome).Inc()
}
