package service

import (
	"errors"

	"github.com/spec-kit/vendor-desk/internal/chat"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

// chatFailure surfaces a chat service error as a retryable TransportError.
// Errors that are already domain errors pass through.
func chatFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewTransportError(op, err)
}

// conversationFailure is chatFailure for calls addressed to a customer. A
// customer missing from the chat directory is permanent, not retryable.
func conversationFailure(op, customerUID string, err error) error {
	if errors.Is(err, chat.ErrUserNotFound) {
		return apperrors.NewNotFound("customer", map[string]any{"customer_uid": customerUID})
	}
	return chatFailure(op, err)
}
