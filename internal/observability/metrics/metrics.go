package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the inbound pipeline. All
// observe methods are nil-safe so wiring metrics stays optional in tests.
type EngineMetrics struct {
	inboundTotal      *prometheus.CounterVec
	outboundTotal     *prometheus.CounterVec
	aiLatency         *prometheus.HistogramVec
	funnelTransitions *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engage",
			Subsystem: "inbound",
			Name:      "webhook_total",
			Help:      "Total inbound webhooks by provider and outcome",
		}, []string{"provider", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engage",
			Subsystem: "outbound",
			Name:      "send_total",
			Help:      "Total outbound sends by channel and status",
		}, []string{"channel", "status"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "engage",
			Subsystem: "ai",
			Name:      "invoke_latency_seconds",
			Help:      "Latency of LLM invocations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		funnelTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engage",
			Subsystem: "funnel",
			Name:      "transition_total",
			Help:      "Funnel automation outcomes by campaign type and intent",
		}, []string{"campaign_type", "intent"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.aiLatency, m.funnelTransitions)
	return m
}

func (m *EngineMetrics) ObserveInbound(provider, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(provider, status).Inc()
}

func (m *EngineMetrics) ObserveOutbound(channel, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *EngineMetrics) ObserveAILatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.aiLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *EngineMetrics) ObserveFunnelTransition(campaignType, intent string) {
	if m == nil {
		return
	}
	m.funnelTransitions.WithLabelValues(campaignType, intent).Inc()
}
