package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "outbox",
		Name:      "publish_total",
		Help:      "Outbox rows processed by the dispatcher, by outcome (delivered or failed).",
	}, []string{"outcome"})

	batchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chizen",
		Subsystem: "outbox",
		Name:      "batch_seconds",
		Help:      "Wall time of one claim, deliver and mark cycle.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	deadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "outbox",
		Name:      "dead_lettered_total",
		Help:      "Events copied to outbox_dlq after a failed publish.",
	}, []string{"topic"})

	dlqActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "dlq",
		Name:      "actions_total",
		Help:      "Dead-letter entries handled by the manager, by action (requeued, rescheduled or quarantined).",
	}, []string{"topic", "event_type", "action"})

	dlqPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chizen",
		Subsystem: "dlq",
		Name:      "pending_entries",
		Help:      "Dead-letter entries still eligible for a retry.",
	})
)

var (
	deliveredEvents = publishedEvents.WithLabelValues("delivered")
	failedEvents    = publishedEvents.WithLabelValues("failed")
)

func observeDLQAction(entry dlqEntry, action string) {
	dlqActions.WithLabelValues(entry.Topic, entry.EventType, action).Inc()
}

// refreshPending counts the entries that are not quarantined.
func refreshPending(ctx context.Context, pool *pgxpool.Pool) error {
	var n int
	const q = `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`
	if err := pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return err
	}
	dlqPending.Set(float64(n))
	return nil
}
