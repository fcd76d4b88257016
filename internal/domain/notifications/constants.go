package notifications

const (
	TypeInfo              = "info"
	TypeSelectionApproved = "selection_approved"
	TypeSelectionSentBack = "selection_sent_back"
	TypeFeedbackSubmitted = "feedback_submitted"
	TypeCycleCompleted    = "cycle_completed"
)

const (
	maxTitleLength = 255
	maxTypeLength  = 50
)
