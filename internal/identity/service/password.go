package service

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

const minPasswordLen = 8

// Password policy errors; the handler reports them as validation failures.
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordNoUpper  = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLower  = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoNumber = errors.New("password must contain at least one number")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
)

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return ErrPasswordTooShort
	}
	// bcrypt ignores input past 72 bytes
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasUpper {
		return ErrPasswordNoUpper
	}
	if !hasLower {
		return ErrPasswordNoLower
	}
	if !hasNumber {
		return ErrPasswordNoNumber
	}
	return nil
}

// IsPolicyError reports whether err is a password policy violation.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) || errors.Is(err, ErrPasswordTooLong) ||
		errors.Is(err, ErrPasswordNoUpper) || errors.Is(err, ErrPasswordNoLower) ||
		errors.Is(err, ErrPasswordNoNumber)
}
