package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"example.com/chizen/internal/events"
	"example.com/chizen/internal/notify"
)

// Router dispatches by event type. Unrouted types are acknowledged without action.
type Router struct {
	routes map[string][]Handler
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string][]Handler)}
}

// On registers h for eventType. Handlers for one type run in registration order.
func (r *Router) On(eventType string, h Handler) *Router {
	r.routes[eventType] = append(r.routes[eventType], h)
	return r
}

// Handle runs every handler registered for msg.EventType and stops at the first error.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	for _, h := range r.routes[msg.EventType] {
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Chain runs handlers in order and stops at the first error.
func Chain(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		for _, h := range handlers {
			if err := h.Handle(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// AuditHandler appends every consumed event to event_log. Redelivered records are ignored.
type AuditHandler struct {
	pool *pgxpool.Pool
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool}
}

// Handle inserts the record.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.pool.Exec(ctx,
		`INSERT INTO event_log (event_type, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	return err
}

// WelcomeHandler sends the welcome e-mail for newsletter.subscribed.
type WelcomeHandler struct {
	notifier notify.Notifier
	log      logrus.FieldLogger
}

// NewWelcomeHandler constructs a WelcomeHandler.
func NewWelcomeHandler(n notify.Notifier, log logrus.FieldLogger) *WelcomeHandler {
	return &WelcomeHandler{notifier: n, log: log}
}

// Handle decodes the subscription and sends the e-mail. Delivery failures are logged and not retried.
func (h *WelcomeHandler) Handle(ctx context.Context, msg Message) error {
	var evt events.NewsletterSubscribed
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("decode %s: %w", msg.EventType, err)
	}
	if evt.Email == "" {
		return fmt.Errorf("decode %s: missing email", msg.EventType)
	}
	err := h.notifier.SendWelcome(ctx, notify.Welcome{Email: evt.Email, Name: evt.Name, Topics: evt.Topics})
	if err != nil {
		observeNotificationFailure(msg.EventType)
		h.log.WithError(err).WithField("event_id", msg.EventID).Warn("welcome e-mail not sent")
		return nil
	}
	h.log.WithField("event_id", msg.EventID).Info("welcome e-mail sent")
	return nil
}

// BroadcastHandler records the fan-out of an admin broadcast.
type BroadcastHandler struct {
	log logrus.FieldLogger
}

// NewBroadcastHandler constructs a BroadcastHandler.
func NewBroadcastHandler(log logrus.FieldLogger) *BroadcastHandler {
	return &BroadcastHandler{log: log}
}

// Handle logs the broadcast.
func (h *BroadcastHandler) Handle(_ context.Context, msg Message) error {
	var evt events.AdminBroadcast
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("decode %s: %w", msg.EventType, err)
	}
	h.log.WithFields(logrus.Fields{
		"broadcast_id": evt.BroadcastID,
		"audience":     evt.Audience,
		"created_by":   evt.CreatedBy,
	}).Info(evt.Message)
	return nil
}
