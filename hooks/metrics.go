package hooks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mnehpets/onerpc/rpc"
)

var (
	// CallsTotal counts completed calls by endpoint, method, and outcome
	// code ("ok" for success).
	CallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onerpc_calls_total",
			Help: "Completed RPC calls",
		},
		[]string{"endpoint", "method", "code"},
	)

	// CallDuration observes per-call pipeline duration from decode to
	// serialized response.
	CallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onerpc_call_duration_seconds",
			Help:    "RPC call duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"endpoint", "method"},
	)

	// CallsInFlight tracks calls currently inside the pipeline.
	CallsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "onerpc_calls_in_flight",
			Help: "RPC calls currently being processed",
		},
	)
)

func init() {
	prometheus.MustRegister(CallsTotal, CallDuration, CallsInFlight)
}

// Metrics returns a hook that records the package collectors for every
// call passing through a Dispatcher.
func Metrics() *rpc.Hook {
	m := &callMetrics{}
	return &rpc.Hook{
		BeforeDecode:   m.started,
		AfterSerialize: m.completed,
	}
}

type callMetrics struct {
	starts startTimes
}

func (m *callMetrics) started(ctx context.Context, c *rpc.Call) error {
	m.starts.mark(c)
	CallsInFlight.Inc()
	return nil
}

func (m *callMetrics) completed(ctx context.Context, c *rpc.Call) error {
	CallsInFlight.Dec()
	endpoint, method := endpointLabel(c), methodLabel(c)
	CallsTotal.WithLabelValues(endpoint, method, codeLabel(c)).Inc()
	CallDuration.WithLabelValues(endpoint, method).Observe(m.starts.since(c).Seconds())
	return nil
}
