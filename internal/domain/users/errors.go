package users

import "reviewflow/internal/platform/apperror"

const MinPasswordLength = 8

var (
	ErrNotFound        = apperror.NotFound("user not found")
	ErrEmailTaken      = apperror.Validation("user with this email already exists")
	ErrPasswordShort   = apperror.Validation("password must be at least 8 characters long")
	ErrSelfDelete      = apperror.Validation("cannot delete your own account")
	ErrForbidden       = apperror.Forbidden("not enough permissions")
	ErrPrivilegeLevel  = apperror.Forbidden("only administrators can change role or active status")
	ErrSystemAdminOnly = apperror.Forbidden("only a System Administrator can grant or manage that role")
)
