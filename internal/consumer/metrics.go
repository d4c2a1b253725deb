package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a decoded workout event once its offset is committed.
const (
	resultStored  = "stored"
	resultSkipped = "skipped"
)

var (
	consumedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "event_log",
		Name:      "events_total",
		Help:      "Workout events committed by the audit consumer, by event type and whether the log write succeeded.",
	}, []string{"event_type", "result"})

	malformedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "event_log",
		Name:      "malformed_records_total",
		Help:      "Kafka records without a valid schema frame or event type header.",
	})

	lastEventTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittracker",
		Subsystem: "event_log",
		Name:      "last_stored_event_timestamp_seconds",
		Help:      "Broker timestamp of the newest workout event written to the log.",
	})
)

func init() {
	prometheus.MustRegister(consumedEvents, malformedRecords, lastEventTime)
}

func recordEvent(event Message, result string) {
	consumedEvents.WithLabelValues(event.EventType, result).Inc()
	if result == resultStored && !event.Timestamp.IsZero() {
		lastEventTime.Set(float64(event.Timestamp.Unix()))
	}
}

// receivedAt prefers the broker timestamp and falls back to the wall clock.
func receivedAt(msg Message) time.Time {
	if msg.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return msg.Timestamp
}
