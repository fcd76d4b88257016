package cycles

import "time"

type Cycle struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Status      Status    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c Cycle) IsActive() bool {
	return c.Status == StatusActive
}

type CreateInput struct {
	Name        string
	StartDate   time.Time
	EndDate     time.Time
	Status      Status
	Description string
}

type UpdateInput struct {
	Name        *string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *Status
	Description *string
}
