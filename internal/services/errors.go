package services

import (
	"errors"
	"fmt"

	"github.com/Dias221467/FoodRescue/internal/repository"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("invalid credentials")
	ErrInvalidState    = errors.New("invalid state")
	ErrDuplicateClaim  = errors.New("you already have an active claim for this item")
	ErrItemUnavailable = errors.New("item is no longer available")
	ErrClaimExpired    = errors.New("claim code has expired")

	ErrClaimNotFound        = notFound("claim")
	ErrFoodItemNotFound     = notFound("food item")
	ErrUserNotFound         = notFound("user")
	ErrDonationNotFound     = notFound("donation")
	ErrEventNotFound        = notFound("event")
	ErrNotificationNotFound = notFound("notification")
)

// notFoundError names the missing resource and matches repository.ErrNotFound.
type notFoundError struct {
	resource string
}

func notFound(resource string) error { return &notFoundError{resource: resource} }

func (e *notFoundError) Error() string { return e.resource + " not found" }

func (e *notFoundError) Is(target error) bool { return target == repository.ErrNotFound }

// stateError explains why a transition was refused and matches ErrInvalidState.
type stateError struct {
	msg string
}

func invalidState(format string, args ...interface{}) error {
	return &stateError{msg: fmt.Sprintf(format, args...)}
}

func (e *stateError) Error() string { return e.msg }

func (e *stateError) Is(target error) bool { return target == ErrInvalidState }

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// mapNotFound swaps a repository miss for the resource-specific error.
func mapNotFound(err error, resourceErr error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return resourceErr
	}
	return err
}
