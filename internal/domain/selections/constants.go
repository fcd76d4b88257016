package selections

import "reviewflow/internal/platform/apperror"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusSentBack Status = "sent_back"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusSentBack:
		return true
	}
	return false
}

type Action string

const (
	ActionUpdate   Action = "update"
	ActionApprove  Action = "approve"
	ActionSendBack Action = "send_back"
	ActionDelete   Action = "delete"
)

// Next returns the status a selection moves to when action is applied in
// state from. Delete leaves the status unchanged when allowed.
func Next(from Status, action Action) (Status, error) {
	switch from {
	case StatusPending:
		switch action {
		case ActionUpdate, ActionDelete:
			return StatusPending, nil
		case ActionApprove:
			return StatusApproved, nil
		case ActionSendBack:
			return StatusSentBack, nil
		}
	case StatusSentBack:
		if action == ActionUpdate {
			return StatusPending, nil
		}
	}
	return from, transitionError(action)
}

func transitionError(action Action) error {
	switch action {
	case ActionUpdate:
		return apperror.Validation("can only update pending or sent back selections")
	case ActionApprove:
		return apperror.Validation("can only approve pending selections")
	case ActionSendBack:
		return apperror.Validation("can only send back pending selections")
	case ActionDelete:
		return apperror.Validation("can only delete pending selections")
	}
	return apperror.Validationf("unknown action %q", string(action))
}

// Feedback progress of a reviewer assignment.
const (
	FeedbackNotStarted = "not_started"
	FeedbackDraft      = "draft"
	FeedbackSubmitted  = "submitted"
)
