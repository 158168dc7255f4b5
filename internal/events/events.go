// Package events defines the payloads ChiZen publishes through the outbox.
package events

import (
	"fmt"
	"time"

	"example.com/chizen/internal/domain"
)

// Event types.
const (
	TypeUserRegistered       = "user.registered"
	TypeRoutineCompleted     = "routine.completed"
	TypeNewsletterSubscribed = "newsletter.subscribed"
	TypeAdminBroadcast       = "admin.broadcast"
)

// Descriptor routes an event type to Kafka.
type Descriptor struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

// Catalog lists every event type the outbox accepts.
var Catalog = map[string]Descriptor{
	TypeUserRegistered:       {AggregateType: "user", Topic: "chizen_user_events", SchemaSubject: "chizen_user_events-value"},
	TypeRoutineCompleted:     {AggregateType: "routine", Topic: "chizen_routine_events", SchemaSubject: "chizen_routine_events-value"},
	TypeNewsletterSubscribed: {AggregateType: "subscription", Topic: "chizen_newsletter_events", SchemaSubject: "chizen_newsletter_events-value"},
	TypeAdminBroadcast:       {AggregateType: "broadcast", Topic: "chizen_admin_events", SchemaSubject: "chizen_admin_events-value"},
}

// Lookup returns the descriptor for eventType.
func Lookup(eventType string) (Descriptor, error) {
	d, ok := Catalog[eventType]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	return d, nil
}

// Topics lists the distinct topics in the catalog.
func Topics() []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range Catalog {
		if !seen[d.Topic] {
			seen[d.Topic] = true
			out = append(out, d.Topic)
		}
	}
	return out
}

// Envelope is an event ready for the outbox.
type Envelope struct {
	Type         string
	AggregateID  string
	PartitionKey string
	Payload      any
}

// DedupeKey identifies the envelope for exactly-once outbox inserts.
func (e Envelope) DedupeKey() string {
	return fmt.Sprintf("%s:%s", e.AggregateID, e.Type)
}

// UserRegistered is emitted when an account is created.
type UserRegistered struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FitnessLevel string    `json:"fitness_level"`
	RegisteredAt time.Time `json:"registered_at"`
}

// RoutineCompleted is emitted when a completion is committed.
type RoutineCompleted struct {
	RoutineID       string    `json:"routine_id"`
	UserID          string    `json:"user_id"`
	CompletedBlocks int       `json:"completed_blocks"`
	TotalBlocks     int       `json:"total_blocks"`
	XPAwarded       int       `json:"xp_awarded"`
	FullCompletion  bool      `json:"full_completion"`
	StreakCurrent   int       `json:"streak_current"`
	StreakLongest   int       `json:"streak_longest"`
	Transition      string    `json:"transition"`
	TotalXP         int       `json:"total_xp"`
	Level           int       `json:"level"`
	CompletedAt     time.Time `json:"completed_at"`
}

// NewsletterSubscribed is emitted for a brand-new subscription.
type NewsletterSubscribed struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Topics       []string  `json:"topics"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// AdminBroadcast carries an admin announcement.
type AdminBroadcast struct {
	BroadcastID string    `json:"broadcast_id"`
	Message     string    `json:"message"`
	Audience    string    `json:"audience"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ForUser builds the user.registered envelope.
func ForUser(u domain.User) Envelope {
	return Envelope{
		Type:         TypeUserRegistered,
		AggregateID:  u.ID,
		PartitionKey: u.ID,
		Payload: UserRegistered{
			UserID:       u.ID,
			Email:        u.Email,
			Username:     u.Username,
			FitnessLevel: string(u.FitnessLevel),
			RegisteredAt: u.CreatedAt.UTC(),
		},
	}
}

// ForCompletion builds the routine.completed envelope.
func ForCompletion(c domain.CompletionCommit) Envelope {
	completedAt := time.Time{}
	if c.Routine.CompletedAt != nil {
		completedAt = c.Routine.CompletedAt.UTC()
	}
	return Envelope{
		Type:         TypeRoutineCompleted,
		AggregateID:  c.Routine.ID,
		PartitionKey: c.UserID,
		Payload: RoutineCompleted{
			RoutineID:       c.Routine.ID,
			UserID:          c.UserID,
			CompletedBlocks: c.Routine.CompletedBlocks,
			TotalBlocks:     c.Routine.TotalBlocks,
			XPAwarded:       c.Result.XPAwarded,
			FullCompletion:  c.Result.FullCompletion,
			StreakCurrent:   c.Progress.Streak.Current,
			StreakLongest:   c.Progress.Streak.Longest,
			Transition:      string(c.Result.Transition),
			TotalXP:         c.Progress.TotalXP,
			Level:           domain.Level(c.Progress.TotalXP),
			CompletedAt:     completedAt,
		},
	}
}

// ForSubscription builds the newsletter.subscribed envelope.
func ForSubscription(s domain.Subscription) Envelope {
	return Envelope{
		Type:         TypeNewsletterSubscribed,
		AggregateID:  s.Email,
		PartitionKey: s.Email,
		Payload: NewsletterSubscribed{
			Email:        s.Email,
			Name:         s.Name,
			Topics:       s.Topics,
			SubscribedAt: s.SubscribedAt.UTC(),
		},
	}
}

// ForBroadcast builds the admin.broadcast envelope.
func ForBroadcast(b domain.Broadcast) Envelope {
	return Envelope{
		Type:         TypeAdminBroadcast,
		AggregateID:  b.ID,
		PartitionKey: b.ID,
		Payload: AdminBroadcast{
			BroadcastID: b.ID,
			Message:     b.Message,
			Audience:    b.Audience,
			CreatedBy:   b.CreatedBy,
			CreatedAt:   b.CreatedAt.UTC(),
		},
	}
}
