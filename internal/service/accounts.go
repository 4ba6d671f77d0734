package service

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"go-identity/internal/model"
)

type NewAccount struct {
	Email       string
	Name        string
	Password    string
	IsStaff     bool
	IsSuperuser bool
}

// BuildAccount validates a new account and hashes its password. The result
// is ready to be stored.
func BuildAccount(hasher *PasswordHasher, in NewAccount, now time.Time) (model.User, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return model.User{}, model.NewValidationError("email", "a valid email is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.User{}, model.NewValidationError("name", "name is required")
	}
	if err := validateNewPassword(in.Password); err != nil {
		return model.User{}, err
	}

	digest, err := hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, err
	}

	return model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: digest,
		Name:         name,
		IsActive:     true,
		IsStaff:      in.IsStaff || in.IsSuperuser,
		IsSuperuser:  in.IsSuperuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
