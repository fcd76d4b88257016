package auth

import "context"

const (
	PermUsersReadAll        = "users.read.all"
	PermUsersWrite          = "users.write"
	PermUsersDelete         = "users.delete"
	PermReviewersRead       = "users.reviewers.read"
	PermCyclesManage        = "cycles.manage"
	PermSelectionsSubmit    = "selections.submit"
	PermSelectionsApprove   = "selections.approve"
	PermFeedbackWrite       = "feedback.write"
	PermFeedbackReadOwn     = "feedback.read.own"
	PermFeedbackReadAll     = "feedback.read.all"
	PermNotificationsManage = "notifications.admin"
	PermAuditRead           = "audit.read"
	PermJobsRun             = "jobs.run"
)

var DefaultPermissions = []string{
	PermUsersReadAll,
	PermUsersWrite,
	PermUsersDelete,
	PermReviewersRead,
	PermCyclesManage,
	PermSelectionsSubmit,
	PermSelectionsApprove,
	PermFeedbackWrite,
	PermFeedbackReadOwn,
	PermFeedbackReadAll,
	PermNotificationsManage,
	PermAuditRead,
	PermJobsRun,
}

// RolePermissions is the single access-control table. Ownership rules
// (own selection, own form, own notification) are enforced by the services.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermReviewersRead,
		PermSelectionsSubmit,
		PermFeedbackReadOwn,
	},
	RoleMentor: {
		PermReviewersRead,
		PermSelectionsApprove,
		PermFeedbackWrite,
	},
	RolePeopleCommittee: {
		PermFeedbackWrite,
	},
	RoleHRLead: {
		PermUsersReadAll,
		PermUsersWrite,
		PermReviewersRead,
		PermCyclesManage,
		PermFeedbackReadAll,
		PermNotificationsManage,
		PermAuditRead,
		PermJobsRun,
	},
	RoleSystemAdmin: {
		PermUsersReadAll,
		PermUsersWrite,
		PermUsersDelete,
		PermReviewersRead,
		PermCyclesManage,
		PermFeedbackReadAll,
		PermNotificationsManage,
		PermAuditRead,
		PermJobsRun,
	},
}

type Policy struct {
	grants map[string]map[string]struct{}
}

func NewPolicy(table map[string][]string) *Policy {
	grants := make(map[string]map[string]struct{}, len(table))
	for role, perms := range table {
		set := make(map[string]struct{}, len(perms))
		for _, perm := range perms {
			set[perm] = struct{}{}
		}
		grants[role] = set
	}
	return &Policy{grants: grants}
}

func DefaultPolicy() *Policy {
	return NewPolicy(RolePermissions)
}

func (p *Policy) Allows(role, permission string) bool {
	if p == nil {
		return false
	}
	_, ok := p.grants[role][permission]
	return ok
}

func (p *Policy) HasPermission(_ context.Context, role, permission string) (bool, error) {
	return p.Allows(role, permission), nil
}
