package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "servermon"

var (
	ChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checks_total",
		Help:      "Subscription checks by result",
	}, []string{"result"})

	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Availability transitions that triggered a notification",
	}, []string{"change"})

	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Notification deliveries by kind and result",
	}, []string{"kind", "result"})

	NewOfferingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "new_offerings_total",
		Help:      "Offerings detected after the known set was seeded",
	})

	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Time spent on one pass over all subscriptions",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	})

	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscriptions",
		Help:      "Number of registered subscriptions",
	})

	KnownOfferings = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "known_offerings",
		Help:      "Number of offering codes seen in the catalog",
	})

	Running = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "running",
		Help:      "1 while the monitor loop is running",
	})

	SourceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_requests_total",
		Help:      "Requests to the availability API by endpoint and status",
	}, []string{"endpoint", "status"})

	RateLimitWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ratelimit_wait_seconds",
		Help:      "Time spent waiting for an outbound request token",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		ChecksTotal, TransitionsTotal, DeliveriesTotal, NewOfferingsTotal,
		CycleDuration, Subscriptions, KnownOfferings, Running,
		SourceRequestsTotal, RateLimitWait,
	)
}
