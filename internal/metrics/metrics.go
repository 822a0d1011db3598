// Package metrics holds the Prometheus instrumentation for the app.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EstimatesComputed counts successful calculations by kind.
	EstimatesComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buildcalc_estimates_total",
		Help: "Number of estimates computed, by kind.",
	}, []string{"kind"})

	// QuotaRejections counts calculations refused by the free-usage limit.
	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildcalc_quota_rejections_total",
		Help: "Number of calculations refused because the free limit was reached.",
	})

	// PaymentsVerified counts charges verified as successful.
	PaymentsVerified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildcalc_payments_verified_total",
		Help: "Number of payments verified as successful.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
