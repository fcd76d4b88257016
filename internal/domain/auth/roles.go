package auth

const (
	RoleEmployee        = "Employee"
	RoleMentor          = "Mentor"
	RoleHRLead          = "HR Lead"
	RoleSystemAdmin     = "System Administrator"
	RolePeopleCommittee = "People Committee"
)

var AllRoles = []string{
	RoleEmployee,
	RoleMentor,
	RoleHRLead,
	RoleSystemAdmin,
	RolePeopleCommittee,
}

// ReviewerRoles may be chosen as reviewers and may author feedback forms.
var ReviewerRoles = []string{RoleMentor, RolePeopleCommittee}

func ValidRole(role string) bool {
	for _, candidate := range AllRoles {
		if candidate == role {
			return true
		}
	}
	return false
}

func IsReviewerRole(role string) bool {
	return role == RoleMentor || role == RolePeopleCommittee
}

func IsAdminRole(role string) bool {
	return role == RoleHRLead || role == RoleSystemAdmin
}

type UserContext struct {
	UserID    string
	RoleName  string
	SessionID string
}
