package models

import "github.com/google/uuid"

// Role is the authorization role attached to a user and to its tokens.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCliente Role = "cliente"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCliente
}

// User represents an authenticated customer or staff member.
type User struct {
	BaseModel
	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	FullName     string  `json:"full_name"`
	Phone        string  `json:"phone"`
	PasswordHash string  `json:"-"`
	Role         Role    `gorm:"type:varchar(16);not null;check:chk_users_role,role IN ('admin','cliente')" json:"role"`
	Orders       []Order `json:"orders,omitempty"`
}

// Identity is the resolved caller of a request.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// Anonymous reports whether no user was resolved.
func (i Identity) Anonymous() bool {
	return i.UserID == uuid.Nil
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// SystemIdentity is used by maintenance jobs that run outside any request.
var SystemIdentity = Identity{Role: RoleAdmin}
