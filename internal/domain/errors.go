// Package domain holds the ChiZen entities, the progression engine and the services that orchestrate them.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when a user cannot be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoutineNotFound is returned when a routine cannot be located for the caller.
	ErrRoutineNotFound = errors.New("routine not found")
	// ErrChallengeNotFound is returned for unknown or inactive challenge ids.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrNotJoined is returned when progress is recorded for a challenge the user has not joined.
	ErrNotJoined = errors.New("challenge not joined")
	// ErrAlreadyJoined is returned when a user joins a challenge twice.
	ErrAlreadyJoined = errors.New("already joined this challenge")
	// ErrEmailTaken is returned when registering an e-mail that already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown e-mail, wrong password and password-less accounts alike.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrSubscriptionNotFound is returned when unsubscribing an address with no active subscription.
	ErrSubscriptionNotFound = errors.New("email not found in subscription list")
	// ErrSelfDeletion is returned when an admin attempts to delete their own account.
	ErrSelfDeletion = errors.New("cannot delete your own account")
	// ErrForbidden is returned when a non-admin reaches an admin operation.
	ErrForbidden = errors.New("not enough permissions")
	// ErrDemoDisabled is returned when a demo token is presented while demo mode is off.
	ErrDemoDisabled = errors.New("demo mode disabled")

	// ErrVersionConflict signals a failed compare-and-set against a user's progress version.
	ErrVersionConflict = errors.New("progress version conflict")
	// ErrRoutineAlreadyCompleted signals that the conditional completion update matched no open routine.
	ErrRoutineAlreadyCompleted = errors.New("routine already completed")
	// ErrRoutineExists signals that a routine for the same user and day was inserted concurrently.
	ErrRoutineExists = errors.New("routine already exists for day")
)

// ValidationError describes malformed input rejected before reaching the domain logic.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
