package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// commandMetrics holds Prometheus metrics for command execution
type commandMetrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
	clients  prometheus.Gauge
}

func newCommandMetrics(reg prometheus.Registerer) (*commandMetrics, error) {
	m := &commandMetrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "objectdb",
			Name:      "commands_total",
			Help:      "Total number of executed commands by outcome",
		}, []string{"command", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "objectdb",
			Name:      "command_duration_seconds",
			Help:      "Command execution latency",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"command"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "objectdb",
			Name:      "connected_clients",
			Help:      "Number of open client connections",
		}),
	}

	for _, c := range []prometheus.Collector{m.commands, m.duration, m.clients} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *commandMetrics) observe(name string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.commands.WithLabelValues(name, status).Inc()
	m.duration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *commandMetrics) clientConnected() {
	if m != nil {
		m.clients.Inc()
	}
}

func (m *commandMetrics) clientDisconnected() {
	if m != nil {
		m.clients.Dec()
	}
}
