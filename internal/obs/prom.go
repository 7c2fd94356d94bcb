package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GoalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "goalbot_goals_total", Help: "Normalized goal events ingested"},
		[]string{"source"},
	)
	DuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "goalbot_duplicates_dropped_total", Help: "Goal events dropped by fingerprint dedup"},
	)
	FallbackPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "goalbot_fallback_polls_total", Help: "Completed fallback poll cycles"},
	)
	AuthorizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "goalbot_authorize_total", Help: "Ledger authorization decisions"},
		[]string{"action", "reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "goalbot_orders_total", Help: "Orders placed on venues"},
		[]string{"strategy", "status"},
	)
	PositionsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "goalbot_positions_closed_total", Help: "Positions closed"},
		[]string{"strategy", "reason"},
	)
	ConnectorState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "goalbot_connector_state", Help: "Feed connector state (1 connecting, 2 connected, 3 reconnecting, 4 fallback)"},
	)
)

func init() {
	prometheus.MustRegister(
		GoalsTotal,
		DuplicatesTotal,
		FallbackPollsTotal,
		AuthorizeTotal,
		OrdersTotal,
		PositionsClosedTotal,
		ConnectorState,
	)
}

// Serve exposes /metrics on the given address.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
