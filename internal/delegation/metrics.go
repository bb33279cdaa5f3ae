package delegation

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for [Metrics].
const (
	resultSuccess  = "success"
	resultRejected = "rejected"
	resultError    = "error"
)

// Metrics counts token endpoint calls made by the [Broker]. A nil *Metrics records nothing.
type Metrics struct {
	exchanges *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewMetrics creates the delegation counters and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tunegate",
			Subsystem: "delegation",
			Name:      "code_exchanges_total",
			Help:      "Authorization code exchanges by result",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tunegate",
			Subsystem: "delegation",
			Name:      "token_refreshes_total",
			Help:      "Delegated token refreshes by result",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.exchanges, m.refreshes)
	}
	return m
}

func (m *Metrics) exchange(result string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(result).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}
