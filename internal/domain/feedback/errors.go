package feedback

import "reviewflow/internal/platform/apperror"

var (
	ErrNotFound          = apperror.NotFound("feedback form not found")
	ErrEmployeeNotFound  = apperror.NotFound("employee not found")
	ErrDuplicate         = apperror.Validation("you already have a feedback form for this employee in this performance cycle")
	ErrCycleInactive     = apperror.Validation("can only create feedback forms for active performance cycles")
	ErrEmployeeInactive  = apperror.Validation("employee is not active")
	ErrSelfFeedback      = apperror.Validation("you cannot write a feedback form about yourself")
	ErrStrengthsRequired = apperror.Validation("strengths is required")
	ErrImprovementsReq   = apperror.Validation("improvements is required")
	ErrInvalidRating     = apperror.Validation("overall rating must be one of: tracking_below, tracking_expected, tracking_above")
	ErrInvalidStatus     = apperror.Validation("status must be one of: draft, submitted")
	ErrNotOwner          = apperror.Forbidden("you can only change your own feedback forms")
	ErrSubmitted         = apperror.Validation("cannot change submitted feedback forms")
)
