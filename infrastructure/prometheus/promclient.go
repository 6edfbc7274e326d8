package promclient

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var WsReconnects = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "clob_ws_reconnects_total",
		Help: "number of push-channel reconnects",
	},
)

var HeartbeatsSent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "clob_heartbeats_total",
		Help: "heartbeat signals by outcome",
	},
	[]string{"outcome"},
)

var OrdersPlaced = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "clob_orders_placed_total",
		Help: "orders accepted by the exchange",
	},
)

var OrdersCancelled = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "clob_orders_cancelled_total",
		Help: "orders cancelled on the exchange",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(WsReconnects)
	reg.MustRegister(HeartbeatsSent)
	reg.MustRegister(OrdersPlaced)
	reg.MustRegister(OrdersCancelled)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promHandler)
	log.Printf("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
