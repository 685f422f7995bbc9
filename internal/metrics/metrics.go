package metrics

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SeedrRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goseedr",
		Name:      "seedr_requests_total",
		Help:      "Total requests to the Seedr API by method, route and outcome.",
	}, []string{"method", "route", "outcome"})

	SeedrRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "goseedr",
		Name:      "seedr_request_duration_seconds",
		Help:      "Seedr API request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "route"})

	BrowserLaunchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goseedr",
		Name:      "browser_launches_total",
		Help:      "Browser launch attempts by mode and result.",
	}, []string{"mode", "result"})

	RPCRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goseedr",
		Name:      "rpc_requests_total",
		Help:      "Transmission RPC requests handled by the bridge, by method and status code.",
	}, []string{"method", "status"})
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SeedrRequestsTotal,
		SeedrRequestDuration,
		BrowserLaunchesTotal,
		RPCRequestsTotal,
	)
}

var numericSegment = regexp.MustCompile(`/\d+`)

// Route collapses numeric ids in an endpoint path so labels stay bounded,
// e.g. "folder/42/rename" becomes "folder/{id}/rename".
func Route(endpoint string) string {
	return numericSegment.ReplaceAllString("/"+endpoint, "/{id}")[1:]
}
