package service

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Orders committed successfully.",
	})

	checkoutAbortsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_aborts_total",
		Help: "Order placements aborted, by reason.",
	}, []string{"reason"})
)

func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ordersPlacedTotal, checkoutAbortsTotal)
}
