package model

import "time"

// Role decides who may decide approvals, force alerts and receive alert mail.
type Role string

const (
	RoleTechnician Role = "technician"
	RoleITLead     Role = "it_lead"
	RoleManager    Role = "manager"
)

func (r Role) Valid() bool {
	return r == RoleTechnician || r == RoleITLead || r == RoleManager
}

// NotificationRoles - roles that receive alert notifications by email
var NotificationRoles = []Role{RoleTechnician, RoleITLead}

type AuthRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type AuthConfigResponse struct {
	AllowSignup bool `json:"allowSignup"`
}

type UpdateRoleRequest struct {
	Role Role `json:"role"`
}

type AuthUser struct {
	ID      int64
	LoginID string
	Role    Role
}

type User struct {
	ID           int64     `json:"id"`
	LoginID      string    `json:"login_id"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
