package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics exposes counters/histograms for the batch relay pipeline.
type RelayMetrics struct {
	batchesAccepted *prometheus.CounterVec
	recordsTotal    *prometheus.CounterVec
	forwardLatency  *prometheus.HistogramVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		batchesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrelay",
			Subsystem: "relay",
			Name:      "batches_accepted_total",
			Help:      "Total inbound batches acknowledged",
		}, []string{"zone"}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadrelay",
			Subsystem: "relay",
			Name:      "records_total",
			Help:      "Processed records by outcome",
		}, []string{"zone", "outcome"}),
		forwardLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadrelay",
			Subsystem: "relay",
			Name:      "forward_seconds",
			Help:      "Latency of outbound CRM forwards",
			Buckets:   prometheus.DefBuckets,
		}, []string{"zone"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.batchesAccepted, m.recordsTotal, m.forwardLatency)
	return m
}

func (m *RelayMetrics) ObserveBatchAccepted(zone string) {
	if m == nil {
		return
	}
	m.batchesAccepted.WithLabelValues(zone).Inc()
}

func (m *RelayMetrics) ObserveRecord(zone, outcome string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(zone, outcome).Inc()
}

func (m *RelayMetrics) ObserveForwardLatency(zone string, seconds float64) {
	if m == nil {
		return
	}
	m.forwardLatency.WithLabelValues(zone).Observe(seconds)
}
