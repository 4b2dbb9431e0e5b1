package coordinator

import "github.com/prometheus/client_golang/prometheus"

const (
	eventCreated   = "created"
	eventStarted   = "started"
	eventFinished  = "finished"
	eventScheduled = "scheduled"
)

var (
	transactionsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "icecaneidb",
			Subsystem: "coordinator",
			Name:      "transactions",
			Help:      "Number of txns tracked by the coordinator per state.",
		}, []string{"coordinator", "state"})

	transactionEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icecaneidb",
			Subsystem: "coordinator",
			Name:      "transaction_events_total",
			Help:      "Counter of txn lifecycle events handled by the coordinator.",
		}, []string{"coordinator", "event"})

	misuseCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "icecaneidb",
			Subsystem: "coordinator",
			Name:      "rejected_calls_total",
			Help:      "Counter of coordinator calls rejected because of caller errors.",
		}, []string{"coordinator", "operation"})
)

func init() {
	prometheus.MustRegister(transactionsGauge)
	prometheus.MustRegister(transactionEventCounter)
	prometheus.MustRegister(misuseCounter)
}

// updateGauges refreshes the per state gauges. Requires the coordinator lock.
func (c *Coordinator) updateGauges() {
	transactionsGauge.WithLabelValues(c.name, "tracked").Set(float64(len(c.all)))
	transactionsGauge.WithLabelValues(c.name, Started.String()).Set(float64(len(c.started)))
	transactionsGauge.WithLabelValues(c.name, Running.String()).Set(float64(len(c.running)))
}

func (c *Coordinator) countEvent(event string) {
	transactionEventCounter.WithLabelValues(c.name, event).Inc()
}

func (c *Coordinator) countMisuse(operation string) {
	misuseCounter.WithLabelValues(c.name, operation).Inc()
}
