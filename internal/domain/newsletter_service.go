package domain

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTopics are assigned when a subscriber picks none.
var DefaultTopics = []string{"wellness_tips", "new_features"}

// NewsletterService manages the mailing list. The welcome e-mail is sent asynchronously by the event
// consumer in response to newsletter.subscribed.
type NewsletterService struct {
	repo NewsletterRepository
	options
}

// NewNewsletterService constructs a NewsletterService.
func NewNewsletterService(repo NewsletterRepository, opts ...Option) *NewsletterService {
	return &NewsletterService{repo: repo, options: buildOptions(opts)}
}

// Subscribe adds or reactivates an address.
func (s *NewsletterService) Subscribe(ctx context.Context, email, name string, topics []string) (SubscribeStatus, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	if len(topics) == 0 {
		topics = DefaultTopics
	}

	existing, err := s.repo.GetSubscription(ctx, email)
	if err != nil {
		return "", err
	}
	now := s.now()
	if existing != nil {
		if existing.Active {
			return SubscribeExisting, nil
		}
		if err := s.repo.ReactivateSubscription(ctx, email, topics, now); err != nil {
			return "", fmt.Errorf("reactivate subscription: %w", err)
		}
		return SubscribeReactivated, nil
	}

	created, err := s.repo.CreateSubscription(ctx, Subscription{
		Email:        email,
		Name:         strings.TrimSpace(name),
		Topics:       topics,
		Source:       "website",
		Active:       true,
		SubscribedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("create subscription: %w", err)
	}
	if !created {
		return SubscribeExisting, nil
	}
	s.log.WithField("email", email).Info("newsletter subscription created")
	return SubscribeNew, nil
}

// Unsubscribe deactivates an address.
func (s *NewsletterService) Unsubscribe(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	ok, err := s.repo.DeactivateSubscription(ctx, email, s.now())
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if !ok {
		return ErrSubscriptionNotFound
	}
	return nil
}

// Stats summarises the list. Recent means subscribed in the last 30 days and still active.
func (s *NewsletterService) Stats(ctx context.Context) (SubscriptionStats, error) {
	stats, err := s.repo.SubscriptionStats(ctx, s.now().AddDate(0, 0, -30))
	if err != nil {
		return SubscriptionStats{}, err
	}
	stats.ConversionRate = percentOf(stats.Active, stats.Active+stats.Unsubscribed)
	return stats, nil
}
