package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	labelType   = "type"
	typeSuccess = "success"
	typeFailed  = "failed"

	typeConfirmed = "confirmed"
	typeRejected  = "rejected"
	typeDeferred  = "deferred"
	typeSent      = "sent"
)

var (
	queuePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_queue_passes",
		Help: "The total number of queue passes (counter)",
	}, []string{labelType})

	passTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_queue_pass_time",
		Help:    "A histogram of queue pass duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30, 60},
	}, []string{labelType})

	queueEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_queue_entries",
		Help: "The total number of processed queue entries by result (counter)",
	}, []string{labelType})

	droppedTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_queue_dropped_triggers",
		Help: "The total number of block triggers dropped because a pass was running (counter)",
	})

	pendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_queue_pending",
		Help: "The total number of pending transactions in the queue",
	})
)

func AddSuccessPass(dur float64) {
	queuePasses.With(prometheus.Labels{labelType: typeSuccess}).Inc()
	passTime.With(prometheus.Labels{labelType: typeSuccess}).Observe(dur)
}

func AddFailedPass(dur float64) {
	queuePasses.With(prometheus.Labels{labelType: typeFailed}).Inc()
	passTime.With(prometheus.Labels{labelType: typeFailed}).Observe(dur)
}

func AddConfirmed(n int) {
	queueEntries.With(prometheus.Labels{labelType: typeConfirmed}).Add(float64(n))
}

func AddRejected(n int) {
	queueEntries.With(prometheus.Labels{labelType: typeRejected}).Add(float64(n))
}

func AddDeferred(n int) {
	queueEntries.With(prometheus.Labels{labelType: typeDeferred}).Add(float64(n))
}

func AddSent(n int) {
	queueEntries.With(prometheus.Labels{labelType: typeSent}).Add(float64(n))
}

func IncDroppedTriggers() {
	droppedTriggers.Inc()
}

func SetPendingEntries(n int64) {
	pendingEntries.Set(float64(n))
}
