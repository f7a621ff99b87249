// Package metrics exposes ambient Prometheus counters/gauges for the
// exchange: order/trade throughput, hard breaches, and book depth. Wholly
// optional -- if no Metrics config section is supplied, counters are still
// incremented in-process but nothing is served.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_orders_inserted_total",
		Help: "Total number of orders inserted, by instrument.",
	}, []string{"instrument"})

	OrdersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_orders_cancelled_total",
		Help: "Total number of orders cancelled, by instrument.",
	}, []string{"instrument"})

	OrdersAmended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_orders_amended_total",
		Help: "Total number of orders amended, by instrument.",
	}, []string{"instrument"})

	Trades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_trades_total",
		Help: "Number of event-loop turns in which at least one trade matched, by instrument.",
	}, []string{"instrument"})

	HardBreaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_hard_breaches_total",
		Help: "Total number of hard breaches, by reason.",
	}, []string{"reason"})

	BookDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fenrir_book_depth",
		Help: "Aggregate resting volume, by instrument and side.",
	}, []string{"instrument", "side"})
)

// Serve starts the Prometheus scrape endpoint on addr and blocks until
// stop is closed or the listener fails. Intended to run on its own
// goroutine; a failure here is logged by the caller, not fatal to the
// exchange.
func Serve(addr string, stop <-chan struct{}) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-stop:
		return srv.Shutdown(context.Background())
	case err := <-errc:
		return err
	}
}
