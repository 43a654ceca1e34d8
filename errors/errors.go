// Package errors holds the error taxonomy shared by every layer.
// Concrete errors wrap one of the kinds below so callers classify with errors.Is.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kinds
var (
	ErrAuthentication    = fmt.Errorf("authentication error")
	ErrValidation        = fmt.Errorf("validation error")
	ErrNotFound          = fmt.Errorf("not found")
	ErrAuthorization     = fmt.Errorf("authorization error")
	ErrConflict          = fmt.Errorf("conflict")
	ErrPersistence       = fmt.Errorf("persistence error")
	ErrBroadcastDelivery = fmt.Errorf("broadcast delivery failure")
)

var (
	ErrMissingCredential   = fmt.Errorf("%w: missing credential", ErrAuthentication)
	ErrInvalidCredential   = fmt.Errorf("%w: invalid credential", ErrAuthentication)
	ErrMalformedCredential = fmt.Errorf("%w: malformed credential", ErrAuthentication)
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid credentials", ErrAuthentication)

	ErrEmptyText         = fmt.Errorf("%w: message text required", ErrValidation)
	ErrTextTooLong       = fmt.Errorf("%w: message text too long", ErrValidation)
	ErrInvalidAttachment = fmt.Errorf("%w: invalid attachment", ErrValidation)
	ErrInvalidPayload    = fmt.Errorf("%w: invalid payload", ErrValidation)
	ErrInvalidCursor     = fmt.Errorf("%w: invalid cursor", ErrValidation)
	ErrInvalidRequest    = fmt.Errorf("%w: invalid request", ErrValidation)

	ErrChannelNotFound = fmt.Errorf("%w: channel not found", ErrNotFound)
	ErrMessageNotFound = fmt.Errorf("%w: message not found", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrNotFound)

	ErrNotMessageOwner = fmt.Errorf("%w: only the sender may delete a message", ErrAuthorization)

	ErrChannelNameTaken  = fmt.Errorf("%w: channel name already exists", ErrConflict)
	ErrUserAlreadyExists = fmt.Errorf("%w: username already exists", ErrConflict)

	ErrSlowConsumer     = fmt.Errorf("%w: outbound buffer full", ErrBroadcastDelivery)
	ErrConnectionClosed = fmt.Errorf("%w: connection closed", ErrBroadcastDelivery)

	ErrTokenGeneration = fmt.Errorf("token generation failed")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
)

// Is and As are re-exported so callers importing this package under the
// name "errors" keep access to the standard helpers.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// HTTPStatus maps an error kind to the response status of the request surface.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case Is(err, ErrValidation):
		return http.StatusBadRequest
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrAuthorization):
		return http.StatusForbidden
	case Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text a client is allowed to see for err.
// Persistence and unknown failures collapse into a generic message.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrEmptyText), Is(err, ErrInvalidPayload):
		return "Invalid message payload"
	case Is(err, ErrChannelNotFound):
		return "Channel not found"
	case Is(err, ErrMessageNotFound):
		return "Message not found"
	case Is(err, ErrNotMessageOwner):
		return "Not allowed"
	case Is(err, ErrAuthentication), Is(err, ErrValidation), Is(err, ErrNotFound),
		Is(err, ErrAuthorization), Is(err, ErrConflict):
		return err.Error()
	default:
		return "Internal server error"
	}
}
