package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBettingClosed       = errors.New("betting is closed for this period")
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundNotSettled     = errors.New("round has no outcome")
	ErrDuplicateSettlement = errors.New("already settled")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrUserNotFound        = errors.New("user not found")
)

// ValidationError reports malformed input at the boundary
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// beginWork starts a unit of work, classifying failures as store outages
func beginWork(ctx context.Context, uow UnitOfWork) error {
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// commitWork commits a unit of work, classifying failures as store outages
func commitWork(uow UnitOfWork) error {
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrStoreUnavailable, err)
	}
	return nil
}
