package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the Gemini reply flow.
type BotMetrics struct {
	repliesTotal    *prometheus.CounterVec
	generateLatency *prometheus.HistogramVec
	withheldTotal   prometheus.Counter
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gemini_bridge",
			Subsystem: "bot",
			Name:      "replies_total",
			Help:      "Total replies by outcome",
		}, []string{"outcome"}),
		generateLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gemini_bridge",
			Subsystem: "bot",
			Name:      "generate_seconds",
			Help:      "Latency of Gemini generateContent calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model", "grounding"}),
		withheldTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gemini_bridge",
			Subsystem: "bot",
			Name:      "safety_withheld_total",
			Help:      "Responses returned without usable content",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.repliesTotal, m.generateLatency, m.withheldTotal)
	return m
}

func (m *BotMetrics) ObserveReply(outcome string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(outcome).Inc()
}

func (m *BotMetrics) ObserveGenerate(model string, grounded bool, seconds float64) {
	if m == nil {
		return
	}
	label := "false"
	if grounded {
		label = "true"
	}
	m.generateLatency.WithLabelValues(model, label).Observe(seconds)
}

func (m *BotMetrics) ObserveWithheld() {
	if m == nil {
		return
	}
	m.withheldTotal.Inc()
}
