package cycles

import "reviewflow/internal/platform/apperror"

const maxNameLength = 255

var (
	ErrNotFound       = apperror.NotFound("performance cycle not found")
	ErrNoActiveCycle  = apperror.NotFound("no active performance cycle found")
	ErrDateOrder      = apperror.Validation("start date must be before end date")
	ErrNameRequired   = apperror.Validation("name is required")
	ErrNameTooLong    = apperror.Validation("name must be at most 255 characters")
	ErrInvalidStatus  = apperror.Validation("status must be one of: active, inactive, completed")
	ErrActiveConflict = apperror.Validation("another performance cycle was activated concurrently")
)
