package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics exposes counters for cart operations.
type CartMetrics struct {
	opsTotal *prometheus.CounterVec
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	m := &CartMetrics{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "cart",
			Name:      "operations_total",
			Help:      "Total cart operations by operation and status",
		}, []string{"operation", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.opsTotal)
	return m
}

func (m *CartMetrics) ObserveOp(operation, status string) {
	if m == nil {
		return
	}
	m.opsTotal.WithLabelValues(operation, status).Inc()
}

// RealtimeMetrics exposes counters and gauges for the push connection.
type RealtimeMetrics struct {
	connectTotal  *prometheus.CounterVec
	terminalTotal prometheus.Counter
	eventsTotal   *prometheus.CounterVec
	connected     prometheus.Gauge
}

func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	m := &RealtimeMetrics{
		connectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "realtime",
			Name:      "connect_attempts_total",
			Help:      "Push gateway connection attempts by outcome",
		}, []string{"outcome"}),
		terminalTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "realtime",
			Name:      "terminal_disconnects_total",
			Help:      "Times the bridge gave up after exhausting retries",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Server-pushed events dispatched by name",
		}, []string{"event"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portal",
			Subsystem: "realtime",
			Name:      "connected",
			Help:      "1 while a push connection is live",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.connectTotal, m.terminalTotal, m.eventsTotal, m.connected)
	return m
}

func (m *RealtimeMetrics) ObserveConnect(outcome string) {
	if m == nil {
		return
	}
	m.connectTotal.WithLabelValues(outcome).Inc()
}

func (m *RealtimeMetrics) ObserveTerminal() {
	if m == nil {
		return
	}
	m.terminalTotal.Inc()
}

func (m *RealtimeMetrics) ObserveEvent(name string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(name).Inc()
}

func (m *RealtimeMetrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
