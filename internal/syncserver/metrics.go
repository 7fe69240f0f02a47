package syncserver

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Connections     prometheus.Gauge
	Subscriptions   prometheus.Gauge
	Requests        *prometheus.CounterVec
	Pushes          prometheus.Counter
	SlowDisconnects prometheus.Counter
	Rejected        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasklist_sync_connections_current",
			Help: "Connected websocket clients",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasklist_sync_subscriptions_current",
			Help: "Live list subscriptions across all clients",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasklist_sync_requests_total",
			Help: "Client requests by op and result",
		}, []string{"op", "result"}),
		Pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasklist_sync_pushes_total",
			Help: "Value frames queued to clients",
		}),
		SlowDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasklist_sync_slow_disconnects_total",
			Help: "Clients dropped because their send buffer was full",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasklist_sync_rejected_connections_total",
			Help: "Connections refused before the upgrade, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Connections, m.Subscriptions, m.Requests, m.Pushes, m.SlowDisconnects, m.Rejected} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
