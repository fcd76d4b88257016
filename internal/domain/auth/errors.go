package auth

import "reviewflow/internal/platform/apperror"

var (
	ErrInvalidCredentials = apperror.Unauthorized("invalid credentials")
	ErrMFARequired        = apperror.Unauthorized("mfa code required")
	ErrMFAInvalid         = apperror.Unauthorized("invalid mfa code")
	ErrSessionExpired     = apperror.Unauthorized("session expired")
	ErrUserNotFound       = apperror.NotFound("user not found")
	ErrMFAUnavailable     = apperror.Validation("mfa requires encryption key")
	ErrMFANotSetUp        = apperror.Validation("mfa setup required")
	ErrMFACodeRejected    = apperror.Validation("invalid mfa code")
)
