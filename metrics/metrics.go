// Package metrics exposes swarm counters over a prometheus scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swarm_ticks_total", Help: "Count of market ticks dispatched to workers"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swarm_decisions_total", Help: "Multiplex decisions rendered"},
		[]string{"market", "decision"},
	)
	OutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swarm_outcomes_total", Help: "Worker monitoring outcomes recorded"},
		[]string{"market", "result"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swarm_orders_total", Help: "Orders submitted for execution"},
		[]string{"market", "side"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "swarm_open_positions", Help: "Currently open positions"},
	)
	WatchlistSize = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "swarm_watchlist_size", Help: "Current dynamic universe size"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, DecisionsTotal,
		OutcomesTotal, OrdersTotal, OpenPositions, WatchlistSize)
}

// Serve exposes the metrics endpoint on the provided address.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
