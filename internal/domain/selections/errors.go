package selections

import "reviewflow/internal/platform/apperror"

var (
	ErrNotFound         = apperror.NotFound("reviewer selection not found")
	ErrDuplicate        = apperror.Validation("you already have a reviewer selection for this performance cycle")
	ErrCycleInactive    = apperror.Validation("can only submit reviewer selections for active performance cycles")
	ErrNoReviewers      = apperror.Validation("at least one reviewer must be selected")
	ErrSelfReviewer     = apperror.Validation("you cannot select yourself as a reviewer")
	ErrNotOwner         = apperror.Forbidden("you can only change your own reviewer selection")
	ErrFeedbackRequired = apperror.Validation("feedback is required when sending back a selection")
	ErrChangesRequired  = apperror.Validation("at least one required change must be listed")
	ErrStateChanged     = apperror.Validation("reviewer selection status changed, reload and try again")
)
