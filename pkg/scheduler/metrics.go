package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the Prometheus instrumentation a Scheduler updates as it
// runs, grounded on dshills-langgraph-go's emit package (its otel/log
// emitters track comparable per-step counters, adapted here directly onto
// client_golang since that repo doesn't itself use Prometheus).
type Metrics struct {
	StepDuration    prometheus.Histogram
	ReadyNodeCount  prometheus.Gauge
	PollRetries     prometheus.Counter
	NodesDispatched prometheus.Counter
	NodesFailed     prometheus.Counter
}

// NewMetrics registers a fresh set of collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "dipeoflow_scheduler_step_duration_seconds",
			Help: "Duration of one scheduler poll/dispatch step.",
		}),
		ReadyNodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dipeoflow_scheduler_ready_nodes",
			Help: "Number of nodes ready to dispatch at the last poll.",
		}),
		PollRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dipeoflow_scheduler_empty_poll_total",
			Help: "Number of empty polls observed (no node ready and none running).",
		}),
		NodesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dipeoflow_scheduler_nodes_dispatched_total",
			Help: "Number of node handler invocations started.",
		}),
		NodesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dipeoflow_scheduler_nodes_failed_total",
			Help: "Number of node handler invocations that failed after retries.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.StepDuration, m.ReadyNodeCount, m.PollRetries, m.NodesDispatched, m.NodesFailed)
	}
	return m
}
