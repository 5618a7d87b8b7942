package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CandlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "candles_closed_total", Help: "Closed candles ingested from the stream"},
		[]string{"symbol"},
	)
	ReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stream_reconnects_total", Help: "Reconnect attempts per stream batch"},
		[]string{"batch"},
	)
	BatchesFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stream_batches_failed_total", Help: "Batches that exhausted their reconnect budget"},
		[]string{"batch"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_emitted_total", Help: "Analysis reports emitted after signal-change gating"},
		[]string{"symbol", "signal"},
	)
	BackfillCandlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backfill_candles_total", Help: "Candles fetched by the backfill coordinator"},
		[]string{"symbol"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted by the auto trader"},
		[]string{"symbol", "side"},
	)
)

func init() {
	prometheus.MustRegister(CandlesTotal, ReconnectsTotal, BatchesFailedTotal, SignalsTotal, BackfillCandlesTotal, OrdersTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
