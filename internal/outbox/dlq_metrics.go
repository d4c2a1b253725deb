package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// What the replay loop did with a dead-lettered workout event.
const (
	outcomeRequeued       = "requeued"
	outcomeRetryScheduled = "retry_scheduled"
	outcomeQuarantined    = "quarantined"
)

var (
	replayOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "outbox",
		Name:      "dlq_replays_total",
		Help:      "Dead-lettered workout events handled by the replay loop, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	pendingReplays = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittracker",
		Subsystem: "outbox",
		Name:      "dlq_pending_events",
		Help:      "Dead-lettered workout events still waiting for a replay.",
	})
)

func init() {
	prometheus.MustRegister(replayOutcomes, pendingReplays)
}

func recordReplay(entry dlqEntry, outcome string) {
	replayOutcomes.WithLabelValues(entry.EventType, outcome).Inc()
}

// refreshPendingReplays leaves the gauge untouched when the count fails.
func refreshPendingReplays(ctx context.Context, pool *pgxpool.Pool) {
	var pending int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&pending); err != nil {
		return
	}
	pendingReplays.Set(float64(pending))
}
