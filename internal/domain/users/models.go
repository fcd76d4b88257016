package users

import "time"

type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	Department string     `json:"department"`
	Position   string     `json:"position"`
	IsActive   bool       `json:"isActive"`
	MFAEnabled bool       `json:"mfaEnabled"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type CreateInput struct {
	Email      string `json:"email" yaml:"email"`
	Name       string `json:"name" yaml:"name"`
	Role       string `json:"role" yaml:"role"`
	Department string `json:"department" yaml:"department"`
	Position   string `json:"position" yaml:"position"`
	Password   string `json:"password" yaml:"password"`
	IsActive   *bool  `json:"isActive,omitempty" yaml:"active,omitempty"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Email      *string `json:"email,omitempty"`
	Name       *string `json:"name,omitempty"`
	Role       *string `json:"role,omitempty"`
	Department *string `json:"department,omitempty"`
	Position   *string `json:"position,omitempty"`
	Password   *string `json:"password,omitempty"`
	IsActive   *bool   `json:"isActive,omitempty"`
}

func (in UpdateInput) touchesPrivileges() bool {
	return in.Role != nil || in.IsActive != nil
}

type NewUser struct {
	Email        string
	Name         string
	Role         string
	Department   string
	Position     string
	PasswordHash string
	IsActive     bool
}

type Patch struct {
	Email        *string
	Name         *string
	Role         *string
	Department   *string
	Position     *string
	PasswordHash *string
	IsActive     *bool
}

type Filter struct {
	Role       string
	Department string
}
