package model

import "strings"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token under "refresh_token" or the
// shorter "refresh" key.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Refresh      string `json:"refresh"`
}

// Token returns the trimmed refresh token, preferring "refresh_token".
func (r RefreshRequest) Token() string {
	if token := strings.TrimSpace(r.RefreshToken); token != "" {
		return token
	}
	return strings.TrimSpace(r.Refresh)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// UpdateProfileRequest distinguishes absent keys from explicit nulls through
// Optional so that PATCH can clear nullable fields.
type UpdateProfileRequest struct {
	Name           Optional[string] `json:"name"`
	NationalID     Optional[string] `json:"cpf"`
	Phone          Optional[string] `json:"phone"`
	AvatarURL      Optional[string] `json:"avatar"`
	DirectionID    Optional[int64]  `json:"direction_id"`
	ManagementID   Optional[int64]  `json:"management_id"`
	CoordinationID Optional[int64]  `json:"coordination_id"`
}

// ToUpdate converts the wire request into a ProfileUpdate.
func (r UpdateProfileRequest) ToUpdate() ProfileUpdate {
	var u ProfileUpdate
	u.Name = r.Name.Value
	u.NationalID, u.ClearNationalID = r.NationalID.Value, r.NationalID.Null
	u.Phone, u.ClearPhone = r.Phone.Value, r.Phone.Null
	u.AvatarURL, u.ClearAvatarURL = r.AvatarURL.Value, r.AvatarURL.Null
	u.DirectionID, u.ClearDirection = r.DirectionID.Value, r.DirectionID.Null
	u.ManagementID, u.ClearManagement = r.ManagementID.Value, r.ManagementID.Null
	u.CoordinationID, u.ClearCoordination = r.CoordinationID.Value, r.CoordinationID.Null
	return u
}
