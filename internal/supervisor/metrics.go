package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	startsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tglaunch",
			Subsystem: "supervisor",
			Name:      "starts_total",
			Help:      "Start requests by outcome",
		},
		[]string{"result"},
	)

	stopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tglaunch",
			Subsystem: "supervisor",
			Name:      "stops_total",
			Help:      "Stop requests by how the backend was stopped",
		},
		[]string{"mode"},
	)

	exitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tglaunch",
			Subsystem: "supervisor",
			Name:      "backend_exits_total",
			Help:      "Backend exits not requested by Stop",
		},
	)

	backendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tglaunch",
			Subsystem: "supervisor",
			Name:      "backend_up",
			Help:      "1 while the backend process is running",
		},
	)

	backendReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tglaunch",
			Subsystem: "supervisor",
			Name:      "backend_ready",
			Help:      "1 when the last status probe found the model loaded",
		},
	)
)

func init() {
	prometheus.MustRegister(startsTotal, stopsTotal, exitsTotal, backendUp, backendReady)
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}
