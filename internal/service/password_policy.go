package service

import (
	"unicode/utf8"

	"go-identity/internal/model"
)

const (
	minPasswordLength = 8
	maxPasswordBytes  = 256
)

func validateNewPassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return model.NewValidationError("new_password", "password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return model.NewValidationError("new_password", "password is too long")
	}
	return nil
}
