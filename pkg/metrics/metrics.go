package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Channel metrics
	ChannelConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goride_channel_connects_total",
			Help: "Total number of realtime channel connection attempts",
		},
		[]string{"status"},
	)

	ChannelReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "goride_channel_reconnects_total",
			Help: "Total number of automatic channel reconnect attempts",
		},
	)

	ChannelEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goride_channel_events_total",
			Help: "Total number of inbound channel events by type",
		},
		[]string{"event"},
	)

	ChannelInvalidEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "goride_channel_invalid_events_total",
			Help: "Total number of malformed channel payloads dropped",
		},
	)

	ChannelConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "goride_channel_connected",
			Help: "Whether the realtime channel is currently connected",
		},
	)

	// Route query metrics
	RouteQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goride_route_queries_total",
			Help: "Total number of directions provider queries",
		},
		[]string{"provider", "status"},
	)

	RouteQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goride_route_query_duration_seconds",
			Help:    "Directions provider query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Session metrics
	RideEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goride_ride_events_total",
			Help: "Total number of ride lifecycle events applied",
		},
		[]string{"event"},
	)
)

// RecordConnect records the outcome of one channel connection attempt.
func RecordConnect(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ChannelConnectsTotal.WithLabelValues(status).Inc()
}

// RecordRouteQuery records a directions provider query outcome.
func RecordRouteQuery(provider string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RouteQueriesTotal.WithLabelValues(provider, status).Inc()
	RouteQueryDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
