package model

import (
	"strings"
	"time"
)

type User struct {
	ID                  string       `json:"id"`
	Email               string       `json:"email"`
	PasswordHash        string       `json:"-"`
	Name                string       `json:"name"`
	NationalID          *string      `json:"cpf"`
	Phone               *string      `json:"phone"`
	AvatarURL           *string      `json:"avatar"`
	IsActive            bool         `json:"is_active"`
	IsStaff             bool         `json:"is_staff"`
	IsSuperuser         bool         `json:"is_superuser"`
	Org                 OrgPlacement `json:"org"`
	FailedLoginAttempts int          `json:"-"`
	LockedUntil         *time.Time   `json:"-"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// IsLocked reports whether the account is inside a lockout window at t.
func (u User) IsLocked(t time.Time) bool {
	return u.LockedUntil != nil && t.Before(*u.LockedUntil)
}

// Roles derives the role names carried by an authenticated identity.
func (u User) Roles() []string {
	roles := []string{RoleUser}
	if u.IsStaff {
		roles = append(roles, RoleStaff)
	}
	if u.IsSuperuser {
		roles = append(roles, RoleSuperuser)
	}
	return roles
}

// Profile is the externally visible snapshot of a user.
func (u User) Profile() Profile {
	return Profile{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		NationalID:       u.NationalID,
		Phone:            u.Phone,
		AvatarURL:        u.AvatarURL,
		IsStaff:          u.IsStaff,
		IsSuperuser:      u.IsSuperuser,
		DirectionID:      u.Org.DirectionID,
		DirectionName:    u.Org.DirectionName,
		ManagementID:     u.Org.ManagementID,
		ManagementName:   u.Org.ManagementName,
		CoordinationID:   u.Org.CoordinationID,
		CoordinationName: u.Org.CoordinationName,
	}
}

// NormalizeEmail is the canonical form used as the login key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const (
	RoleUser      = "user"
	RoleStaff     = "staff"
	RoleSuperuser = "superuser"
)

// Identity is the authenticated caller, built from a verified access token
// and passed explicitly to every service operation that needs one.
type Identity struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

type Profile struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Name             string  `json:"name"`
	NationalID       *string `json:"cpf"`
	Phone            *string `json:"phone"`
	AvatarURL        *string `json:"avatar"`
	IsStaff          bool    `json:"is_staff"`
	IsSuperuser      bool    `json:"is_superuser"`
	DirectionID      *int64  `json:"direction_id"`
	DirectionName    *string `json:"direction_name"`
	ManagementID     *int64  `json:"management_id"`
	ManagementName   *string `json:"management_name"`
	CoordinationID   *int64  `json:"coordination_id"`
	CoordinationName *string `json:"coordination_name"`
}

// ProfileUpdate carries a partial profile edit. Nil fields are left unchanged;
// the Clear* flags null out an optional field explicitly.
type ProfileUpdate struct {
	Name              *string
	NationalID        *string
	Phone             *string
	AvatarURL         *string
	DirectionID       *int64
	ManagementID      *int64
	CoordinationID    *int64
	ClearNationalID   bool
	ClearPhone        bool
	ClearAvatarURL    bool
	ClearDirection    bool
	ClearManagement   bool
	ClearCoordination bool
}
