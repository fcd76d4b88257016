package notifications

import "reviewflow/internal/platform/apperror"

var (
	ErrNotFound          = apperror.NotFound("notification not found")
	ErrRecipientNotFound = apperror.NotFound("recipient user not found")
	ErrNotRecipient      = apperror.Forbidden("not authorized to access this notification")
	ErrTitleRequired     = apperror.Validation("title is required")
	ErrTitleTooLong      = apperror.Validation("title must be at most 255 characters")
	ErrMessageRequired   = apperror.Validation("message is required")
	ErrTypeTooLong       = apperror.Validation("type must be at most 50 characters")
)
