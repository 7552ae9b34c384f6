package service

import (
	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/go-playground/validator/v10"
)

// bcrypt ignores everything after 72 bytes and refuses longer input
const maxPasswordBytes = 72

var validate = validator.New()

// checkEmail проверяет email тем же правилом, что и binding:"required,email"
func checkEmail(field, email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return apperrors.Validation(field, "a valid email is required")
	}
	return nil
}

func checkPassword(field, password string) error {
	if len(password) > maxPasswordBytes {
		return apperrors.Validation(field, "must be at most 72 bytes")
	}
	return nil
}
