package users

import (
	"context"
	"net/mail"
	"strings"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/apperror"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

// Create adds a user on behalf of actor. Only a System Administrator may
// create another System Administrator.
func (s *Service) Create(ctx context.Context, actor auth.UserContext, in CreateInput) (User, error) {
	if in.Role == auth.RoleSystemAdmin && actor.RoleName != auth.RoleSystemAdmin {
		return User{}, ErrSystemAdminOnly
	}
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in CreateInput) (User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, apperror.Validation("name is required")
	}
	if !auth.ValidRole(in.Role) {
		return User{}, invalidRole()
	}
	if len(in.Password) < MinPasswordLength {
		return User{}, ErrPasswordShort
	}
	taken, err := s.store.EmailTaken(ctx, email, "")
	if err != nil {
		return User{}, err
	}
	if taken {
		return User{}, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return s.store.Create(ctx, NewUser{
		Email:        email,
		Name:         name,
		Role:         in.Role,
		Department:   strings.TrimSpace(in.Department),
		Position:     strings.TrimSpace(in.Position),
		PasswordHash: hash,
		IsActive:     active,
	})
}

func (s *Service) Get(ctx context.Context, actor auth.UserContext, id string) (User, error) {
	if actor.UserID != id && !auth.IsAdminRole(actor.RoleName) {
		return User{}, ErrForbidden
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]User, int, error) {
	if filter.Role != "" && !auth.ValidRole(filter.Role) {
		return nil, 0, invalidRole()
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update applies a partial update. Users may edit their own profile;
// administrators may edit anyone and are the only ones allowed to change
// role or active status. System Administrator accounts, and the role
// itself, are reserved to System Administrators.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, in UpdateInput) (User, error) {
	isAdmin := auth.IsAdminRole(actor.RoleName)
	if actor.UserID != id && !isAdmin {
		return User{}, ErrForbidden
	}
	if in.touchesPrivileges() && !isAdmin {
		return User{}, ErrPrivilegeLevel
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if actor.RoleName != auth.RoleSystemAdmin {
		if current.Role == auth.RoleSystemAdmin || (in.Role != nil && *in.Role == auth.RoleSystemAdmin) {
			return User{}, ErrSystemAdminOnly
		}
	}

	patch, err := s.buildPatch(ctx, id, in)
	if err != nil {
		return User{}, err
	}
	return s.store.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, actor auth.UserContext, id string) error {
	if actor.UserID == id {
		return ErrSelfDelete
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) AvailableReviewers(ctx context.Context, actor auth.UserContext, department string) ([]User, error) {
	return s.store.AvailableReviewers(ctx, actor.UserID, strings.TrimSpace(department))
}

func (s *Service) Me(ctx context.Context, actor auth.UserContext) (User, error) {
	return s.store.Get(ctx, actor.UserID)
}

// UpdateMe never changes role or active status, whatever the caller sends.
func (s *Service) UpdateMe(ctx context.Context, actor auth.UserContext, in UpdateInput) (User, error) {
	in.Role = nil
	in.IsActive = nil
	return s.Update(ctx, actor, actor.UserID, in)
}

func (s *Service) buildPatch(ctx context.Context, id string, in UpdateInput) (Patch, error) {
	var patch Patch
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return Patch{}, err
		}
		taken, err := s.store.EmailTaken(ctx, email, id)
		if err != nil {
			return Patch{}, err
		}
		if taken {
			return Patch{}, ErrEmailTaken
		}
		patch.Email = &email
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Patch{}, apperror.Validation("name must not be empty")
		}
		patch.Name = &name
	}
	if in.Role != nil {
		if !auth.ValidRole(*in.Role) {
			return Patch{}, invalidRole()
		}
		patch.Role = in.Role
	}
	if in.Department != nil {
		department := strings.TrimSpace(*in.Department)
		patch.Department = &department
	}
	if in.Position != nil {
		position := strings.TrimSpace(*in.Position)
		patch.Position = &position
	}
	if in.Password != nil {
		if len(*in.Password) < MinPasswordLength {
			return Patch{}, ErrPasswordShort
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return Patch{}, err
		}
		patch.PasswordHash = &hash
	}
	patch.IsActive = in.IsActive
	return patch, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.Validation("email is invalid")
	}
	return email, nil
}

func invalidRole() error {
	return apperror.Validationf("invalid role, must be one of: %s", strings.Join(auth.AllRoles, ", "))
}
