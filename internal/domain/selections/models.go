package selections

import "time"

type Selection struct {
	ID                 string     `json:"id"`
	PerformanceCycleID string     `json:"performanceCycleId"`
	MenteeID           string     `json:"menteeId"`
	Status             Status     `json:"status"`
	Comments           string     `json:"comments"`
	SubmittedAt        *time.Time `json:"submittedAt"`
	MentorFeedback     string     `json:"mentorFeedback"`
	RequiredChanges    []string   `json:"requiredChanges"`
	ReviewedBy         *string    `json:"reviewedBy"`
	ReviewedAt         *time.Time `json:"reviewedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	ReviewerIDs        []string   `json:"reviewerIds"`
}

type UserSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Position   string `json:"position"`
	IsActive   bool   `json:"isActive"`
}

type CycleSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Status    string    `json:"status"`
}

// View is a selection expanded with the users and cycle it references.
type View struct {
	Selection
	Mentee            *UserSummary  `json:"mentee,omitempty"`
	SelectedReviewers []UserSummary `json:"selectedReviewers"`
	PerformanceCycle  *CycleSummary `json:"performanceCycle,omitempty"`
}

type Assignment struct {
	SelectionID      string       `json:"selectionId"`
	Mentee           UserSummary  `json:"mentee"`
	PerformanceCycle CycleSummary `json:"performanceCycle"`
	FeedbackStatus   string       `json:"feedbackStatus"`
	FeedbackFormID   *string      `json:"feedbackFormId"`
}

type CreateInput struct {
	PerformanceCycleID string
	ReviewerIDs        []string
	Comments           string
}

// UpdateInput leaves the reviewer list unchanged when ReviewerIDs is nil.
type UpdateInput struct {
	ReviewerIDs []string
	Comments    *string
}

type Review struct {
	Status          Status
	ReviewedBy      string
	MentorFeedback  string
	RequiredChanges []string
}
