package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeHandled = "handled"
	outcomeFailed  = "failed"
)

var (
	consumedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "consumer",
		Name:      "events_total",
		Help:      "Consumed events by topic, event type and outcome (handled or failed).",
	}, []string{"topic", "event_type", "outcome"})

	undecodableRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "consumer",
		Name:      "undecodable_records_total",
		Help:      "Records committed without handling because the frame or headers were invalid.",
	}, []string{"topic"})

	notificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chizen",
		Subsystem: "consumer",
		Name:      "notification_failures_total",
		Help:      "E-mails that could not be handed to the mail provider.",
	}, []string{"event_type"})

	newestHandled = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chizen",
		Subsystem: "consumer",
		Name:      "newest_handled_record_timestamp_seconds",
		Help:      "Broker timestamp of the latest handled record per topic.",
	}, []string{"topic"})
)

func observeHandled(msg Message) {
	consumedEvents.WithLabelValues(msg.Topic, msg.EventType, outcomeHandled).Inc()
	if !msg.Timestamp.IsZero() {
		newestHandled.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func observeFailed(msg Message) {
	consumedEvents.WithLabelValues(msg.Topic, msg.EventType, outcomeFailed).Inc()
}

func observeUndecodable(topic string) {
	undecodableRecords.WithLabelValues(topic).Inc()
}

func observeNotificationFailure(eventType string) {
	notificationFailures.WithLabelValues(eventType).Inc()
}
