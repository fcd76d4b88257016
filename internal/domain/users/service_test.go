package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/apperror"
)

type memStore struct {
	mu     sync.Mutex
	seq    int
	users  map[string]User
	hashes map[string]string
}

func newMemStore() *memStore {
	return &memStore{users: map[string]User{}, hashes: map[string]string{}}
}

func (m *memStore) Create(_ context.Context, in NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, in.Email) {
			return User{}, ErrEmailTaken
		}
	}
	m.seq++
	u := User{
		ID:         fmt.Sprintf("user-%d", m.seq),
		Email:      in.Email,
		Name:       in.Name,
		Role:       in.Role,
		Department: in.Department,
		Position:   in.Position,
		IsActive:   in.IsActive,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	m.users[u.ID] = u
	m.hashes[u.ID] = in.PasswordHash
	return u, nil
}

func (m *memStore) Get(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) EmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) filtered(filter Filter) []User {
	out := []User{}
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Department != "" && u.Department != filter.Department {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *memStore) List(_ context.Context, filter Filter, limit, offset int) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filtered(filter)
	if offset >= len(all) {
		return []User{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (m *memStore) Count(_ context.Context, filter Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.filtered(filter)), nil
}

func (m *memStore) Update(_ context.Context, id string, patch Patch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Department != nil {
		u.Department = *patch.Department
	}
	if patch.Position != nil {
		u.Position = *patch.Position
	}
	if patch.PasswordHash != nil {
		m.hashes[id] = *patch.PasswordHash
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	m.users[id] = u
	return u, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) AvailableReviewers(_ context.Context, excludeID, department string) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []User{}
	for _, u := range m.filtered(Filter{Department: department}) {
		if u.ID == excludeID || !u.IsActive || !auth.IsReviewerRole(u.Role) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

var rootActor = auth.UserContext{UserID: "root", RoleName: auth.RoleSystemAdmin}

func mustCreate(t *testing.T, svc *Service, email, name, role, department string) User {
	t.Helper()
	u, err := svc.Create(context.Background(), rootActor, CreateInput{Email: email, Name: name, Role: role, Department: department, Password: "password123"})
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return u
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemStore())
	mustCreate(t, svc, "taken@example.com", "Taken", auth.RoleEmployee, "")

	tests := []struct {
		name  string
		input CreateInput
	}{
		{name: "short password", input: CreateInput{Email: "a@example.com", Name: "A", Role: auth.RoleEmployee, Password: "short"}},
		{name: "bad role", input: CreateInput{Email: "b@example.com", Name: "B", Role: "Admin", Password: "password123"}},
		{name: "bad email", input: CreateInput{Email: "not-an-email", Name: "C", Role: auth.RoleEmployee, Password: "password123"}},
		{name: "missing name", input: CreateInput{Email: "d@example.com", Role: auth.RoleEmployee, Password: "password123"}},
		{name: "duplicate email case insensitive", input: CreateInput{Email: "TAKEN@example.com", Name: "E", Role: auth.RoleEmployee, Password: "password123"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), rootActor, tc.input)
			if !apperror.Is(err, apperror.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateNormalizesEmailAndDefaultsActive(t *testing.T) {
	svc := NewService(newMemStore())
	u := mustCreate(t, svc, "  Mixed@Example.COM ", "Mixed", auth.RoleMentor, "Eng")
	if u.Email != "mixed@example.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if !u.IsActive {
		t.Fatal("expected user to default active")
	}
}

func TestUpdatePrivilegeEscalationBlocked(t *testing.T) {
	svc := NewService(newMemStore())
	employee := mustCreate(t, svc, "emp@example.com", "Emp", auth.RoleEmployee, "")
	other := mustCreate(t, svc, "other@example.com", "Other", auth.RoleEmployee, "")
	actor := auth.UserContext{UserID: employee.ID, RoleName: auth.RoleEmployee}
	ctx := context.Background()

	role := auth.RoleSystemAdmin
	if _, err := svc.Update(ctx, actor, employee.ID, UpdateInput{Role: &role}); !errors.Is(err, ErrPrivilegeLevel) {
		t.Fatalf("expected privilege error, got %v", err)
	}

	name := "Renamed"
	if _, err := svc.Update(ctx, actor, other.ID, UpdateInput{Name: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden editing another user, got %v", err)
	}

	updated, err := svc.UpdateMe(ctx, actor, UpdateInput{Name: &name, Role: &role})
	if err != nil {
		t.Fatalf("update me: %v", err)
	}
	if updated.Name != "Renamed" || updated.Role != auth.RoleEmployee {
		t.Fatalf("expected name change without role change, got %+v", updated)
	}
}

func TestAdminUpdatesRoleAndEmailUniqueness(t *testing.T) {
	svc := NewService(newMemStore())
	admin := auth.UserContext{UserID: "admin", RoleName: auth.RoleHRLead}
	a := mustCreate(t, svc, "a@example.com", "A", auth.RoleEmployee, "")
	mustCreate(t, svc, "b@example.com", "B", auth.RoleEmployee, "")
	ctx := context.Background()

	role := auth.RoleMentor
	updated, err := svc.Update(ctx, admin, a.ID, UpdateInput{Role: &role})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Role != auth.RoleMentor {
		t.Fatalf("expected role change, got %q", updated.Role)
	}

	email := "B@example.com"
	if _, err := svc.Update(ctx, admin, a.ID, UpdateInput{Email: &email}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}

	missing := "Ghost"
	if _, err := svc.Update(ctx, admin, "nope", UpdateInput{Name: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteSelfForbidden(t *testing.T) {
	svc := NewService(newMemStore())
	u := mustCreate(t, svc, "root@example.com", "Root", auth.RoleSystemAdmin, "")
	actor := auth.UserContext{UserID: u.ID, RoleName: auth.RoleSystemAdmin}

	if err := svc.Delete(context.Background(), actor, u.ID); !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("expected self delete error, got %v", err)
	}
	if err := svc.Delete(context.Background(), actor, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAvailableReviewersExcludesCallerAndNonReviewers(t *testing.T) {
	svc := NewService(newMemStore())
	mentor := mustCreate(t, svc, "m1@example.com", "Mentor One", auth.RoleMentor, "Eng")
	mustCreate(t, svc, "m2@example.com", "Mentor Two", auth.RoleMentor, "Sales")
	mustCreate(t, svc, "pc@example.com", "Committee", auth.RolePeopleCommittee, "Eng")
	mustCreate(t, svc, "e@example.com", "Employee", auth.RoleEmployee, "Eng")
	inactive := false
	if _, err := svc.Create(context.Background(), rootActor, CreateInput{Email: "gone@example.com", Name: "Gone", Role: auth.RoleMentor, Department: "Eng", Password: "password123", IsActive: &inactive}); err != nil {
		t.Fatalf("create inactive: %v", err)
	}

	reviewers, err := svc.AvailableReviewers(context.Background(), auth.UserContext{UserID: mentor.ID, RoleName: auth.RoleMentor}, "Eng")
	if err != nil {
		t.Fatalf("available reviewers: %v", err)
	}
	if len(reviewers) != 1 || reviewers[0].Email != "pc@example.com" {
		t.Fatalf("unexpected reviewers: %+v", reviewers)
	}
}

func TestListRejectsUnknownRoleFilter(t *testing.T) {
	svc := NewService(newMemStore())
	if _, _, err := svc.List(context.Background(), Filter{Role: "Boss"}, 10, 0); !apperror.Is(err, apperror.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	mustCreate(t, svc, "a@example.com", "A", auth.RoleMentor, "")
	mustCreate(t, svc, "b@example.com", "B", auth.RoleEmployee, "")
	items, total, err := svc.List(context.Background(), Filter{Role: auth.RoleMentor}, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected one mentor, got total=%d items=%d", total, len(items))
	}
}

func TestSystemAdminRoleReservedToSystemAdmins(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	lead := mustCreate(t, svc, "lead@example.com", "Lead", auth.RoleHRLead, "")
	emp := mustCreate(t, svc, "emp@example.com", "Emp", auth.RoleEmployee, "")
	sysadmin := mustCreate(t, svc, "sys@example.com", "Sys", auth.RoleSystemAdmin, "")
	leadActor := auth.UserContext{UserID: lead.ID, RoleName: auth.RoleHRLead}

	promote := auth.RoleSystemAdmin
	demote := auth.RoleEmployee
	inactive := false
	rename := "Renamed"
	password := "takeover123"

	tests := []struct {
		name string
		id   string
		in   UpdateInput
	}{
		{name: "self promotion", id: lead.ID, in: UpdateInput{Role: &promote}},
		{name: "promote another user", id: emp.ID, in: UpdateInput{Role: &promote}},
		{name: "demote system administrator", id: sysadmin.ID, in: UpdateInput{Role: &demote}},
		{name: "deactivate system administrator", id: sysadmin.ID, in: UpdateInput{IsActive: &inactive}},
		{name: "edit system administrator profile", id: sysadmin.ID, in: UpdateInput{Name: &rename}},
		{name: "reset system administrator password", id: sysadmin.ID, in: UpdateInput{Password: &password}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Update(ctx, leadActor, tc.id, tc.in); !errors.Is(err, ErrSystemAdminOnly) {
				t.Fatalf("expected system admin only error, got %v", err)
			}
		})
	}

	for _, id := range []string{lead.ID, emp.ID, sysadmin.ID} {
		u, err := svc.store.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if id != sysadmin.ID && u.Role == auth.RoleSystemAdmin {
			t.Fatalf("user %s was promoted", u.Email)
		}
		if id == sysadmin.ID && (u.Role != auth.RoleSystemAdmin || !u.IsActive || u.Name != "Sys") {
			t.Fatalf("system administrator was modified: %+v", u)
		}
	}

	if _, err := svc.Create(ctx, leadActor, CreateInput{Email: "new@example.com", Name: "New", Role: auth.RoleSystemAdmin, Password: "password123"}); !errors.Is(err, ErrSystemAdminOnly) {
		t.Fatalf("expected hr lead create of system administrator to fail, got %v", err)
	}
	if _, err := svc.Create(ctx, leadActor, CreateInput{Email: "mentor@example.com", Name: "Mentor", Role: auth.RoleMentor, Password: "password123"}); err != nil {
		t.Fatalf("hr lead creating a mentor: %v", err)
	}
}

func TestSystemAdminManagesSystemAdmins(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	emp := mustCreate(t, svc, "emp@example.com", "Emp", auth.RoleEmployee, "")
	other := mustCreate(t, svc, "sys2@example.com", "Sys Two", auth.RoleSystemAdmin, "")

	promote := auth.RoleSystemAdmin
	updated, err := svc.Update(ctx, rootActor, emp.ID, UpdateInput{Role: &promote})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if updated.Role != auth.RoleSystemAdmin {
		t.Fatalf("expected promotion, got %q", updated.Role)
	}

	inactive := false
	if _, err := svc.Update(ctx, rootActor, other.ID, UpdateInput{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate system administrator: %v", err)
	}
}
