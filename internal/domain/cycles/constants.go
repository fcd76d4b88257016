package cycles

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCompleted Status = "completed"
)

var Statuses = []Status{StatusActive, StatusInactive, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusCompleted:
		return true
	}
	return false
}

func ParseStatus(raw string) (Status, bool) {
	status := Status(raw)
	return status, status.Valid()
}
