package feedback

import "time"

type Form struct {
	ID                 string     `json:"id"`
	EmployeeID         string     `json:"employeeId"`
	ReviewerID         string     `json:"reviewerId"`
	PerformanceCycleID string     `json:"performanceCycleId"`
	Strengths          string     `json:"strengths"`
	Improvements       string     `json:"improvements"`
	OverallRating      Rating     `json:"overallRating"`
	Status             Status     `json:"status"`
	SubmittedAt        *time.Time `json:"submittedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	EmployeeName       string     `json:"employeeName,omitempty"`
	ReviewerName       string     `json:"reviewerName,omitempty"`
}

type Person struct {
	ID       string
	Name     string
	Email    string
	IsActive bool
}

type CreateInput struct {
	EmployeeID         string
	PerformanceCycleID string
	Strengths          string
	Improvements       string
	OverallRating      Rating
	Status             Status
}

type UpdateInput struct {
	Strengths     *string
	Improvements  *string
	OverallRating *Rating
	Status        *Status
}

type Filter struct {
	Status  Status
	CycleID string
}
