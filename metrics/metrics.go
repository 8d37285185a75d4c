package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_active",
		Help: "Client connections currently open.",
	})
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "Rooms currently registered.",
	})
	StatesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_states_relayed_total",
		Help: "State messages broadcast to rooms.",
	})
	StaleEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_stale_evictions_total",
		Help: "Connections closed for failing liveness probes.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
