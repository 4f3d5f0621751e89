package producer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	attemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kroute", Subsystem: "producer", Name: "attempts_total",
		Help: "Number of send attempts, by outcome",
	}, []string{"outcome"})
	retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kroute", Subsystem: "producer", Name: "retries_total",
		Help: "Number of backoff waits before a new send attempt",
	})
	encodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kroute", Subsystem: "producer", Name: "encode_errors_total",
		Help: "Number of models whose key or payload could not be encoded",
	})
	sendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kroute", Subsystem: "producer", Name: "send_duration_seconds",
		Help:    "Duration of send attempts in seconds",
		Buckets: prometheus.DefBuckets,
	})

	registerOnce sync.Once
)

// RegisterMetrics registers the producer metrics with r. It is called
// with the default registerer by New; only the first call has an
// effect.
func RegisterMetrics(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(attemptsTotal, retriesTotal, encodeErrorsTotal, sendDuration)
	})
}
