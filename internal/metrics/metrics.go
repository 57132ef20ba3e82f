package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Relevance pipeline Prometheus metrics.
var (
	BatchCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arxiv_agent",
			Name:      "batch_calls_total",
			Help:      "Backend calls issued per stage, by outcome",
		},
		[]string{"stage", "status"}, // status: ok / transport_error / parse_error
	)

	BatchCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arxiv_agent",
			Name:      "batch_call_duration_seconds",
			Help:      "Backend call duration per stage in seconds, gate wait excluded",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"stage"},
	)

	GateInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arxiv_agent",
			Name:      "gate_in_flight",
			Help:      "Backend calls currently admitted by the concurrency gate",
		},
	)

	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arxiv_agent",
			Name:      "verdicts_total",
			Help:      "Screening verdicts assigned, by level",
		},
		[]string{"level"},
	)

	EnrichedItemsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arxiv_agent",
			Name:      "enriched_items_total",
			Help:      "Items that received a detail record",
		},
	)
)

// Registry holds every collector above; it is separate from the default
// registry so the textfile export carries only pipeline metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(BatchCallsTotal, BatchCallDuration, GateInFlight, VerdictsTotal, EnrichedItemsTotal)
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
