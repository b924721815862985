package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// User is a persisted team member. The role decides who may run attendance
// sessions and manage missions.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewUser(name string, email string, role Role) *User {
	now := time.Now().UTC()
	if !role.Valid() {
		role = RoleMember
	}
	return &User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Summary is the sender block embedded in delivered chat messages.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID.String(), Name: u.Name}
}

type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
