package consumer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kroute", Subsystem: "consumer", Name: "messages_total",
		Help: "Number of received messages, by outcome",
	}, []string{"outcome"})
	transportErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kroute", Subsystem: "consumer", Name: "transport_errors_total",
		Help: "Number of errors reported by the Kafka client",
	}, []string{"fatal"})

	registerOnce sync.Once
)

// Outcomes of a received message.
const (
	outcomeCommitted  = "committed"
	outcomeFailed     = "handler_error"
	outcomeKeyMissing = "key_missing"
	outcomeKeyInvalid = "key_invalid"
)

// RegisterMetrics registers the consumer metrics with r. It is called
// with the default registerer when a Consumer is created; only the
// first call has an effect.
func RegisterMetrics(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(messagesTotal, transportErrorsTotal)
	})
}
