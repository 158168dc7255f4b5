package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Subscription is a newsletter list entry keyed by e-mail.
type Subscription struct {
	Email          string
	Name           string
	Topics         []string
	Source         string
	Active         bool
	SubscribedAt   time.Time
	UnsubscribedAt *time.Time
	ResubscribedAt *time.Time
}

// SubscribeStatus describes what Subscribe did.
type SubscribeStatus string

const (
	SubscribeNew         SubscribeStatus = "new"
	SubscribeExisting    SubscribeStatus = "existing"
	SubscribeReactivated SubscribeStatus = "reactivated"
)

// SubscriptionStats summarises the list for admins.
type SubscriptionStats struct {
	Active         int
	Unsubscribed   int
	RecentActive   int
	ConversionRate float64
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "is not a valid address")
	}
	return email, nil
}
