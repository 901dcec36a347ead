package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the scheduling engine.
type SchedulingMetrics struct {
	bulkApplyTotal     *prometheus.CounterVec
	toggleTotal        *prometheus.CounterVec
	generateSeconds    prometheus.Histogram
	generatedInstances prometheus.Histogram
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bulkApplyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "schedule",
			Name:      "bulk_apply_total",
			Help:      "Total bulk template applications by outcome",
		}, []string{"outcome"}),
		toggleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "schedule",
			Name:      "toggle_total",
			Help:      "Total slot block toggles by outcome",
		}, []string{"outcome"}),
		generateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicsched",
			Subsystem: "slots",
			Name:      "generate_seconds",
			Help:      "Latency of slot instance generation",
			Buckets:   prometheus.DefBuckets,
		}),
		generatedInstances: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicsched",
			Subsystem: "slots",
			Name:      "generated_instances",
			Help:      "Slot instances produced per generation request",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bulkApplyTotal, m.toggleTotal, m.generateSeconds, m.generatedInstances)
	return m
}

func (m *SchedulingMetrics) ObserveBulkApply(outcome string) {
	if m == nil {
		return
	}
	m.bulkApplyTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveToggle(outcome string) {
	if m == nil {
		return
	}
	m.toggleTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveGeneration(seconds float64, instances int) {
	if m == nil {
		return
	}
	m.generateSeconds.Observe(seconds)
	m.generatedInstances.Observe(float64(instances))
}
