package auth

import (
	"fmt"
	"strings"
)

const (
	PasswordMinLength = 6
	PasswordMaxLength = 10
)

// ValidatePassword enforces the account password rules: 6 to 10 characters
// with at least one upper case letter, one lower case letter, one digit and
// one character that is neither.
func ValidatePassword(password string) error {
	n := len([]rune(password))
	if n < PasswordMinLength || n > PasswordMaxLength {
		return fmt.Errorf("%w: length must be between %d and %d", ErrWeakPassword, PasswordMinLength, PasswordMaxLength)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	switch {
	case !upper:
		return fmt.Errorf("%w: must contain an upper case letter", ErrWeakPassword)
	case !lower:
		return fmt.Errorf("%w: must contain a lower case letter", ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	case !special:
		return fmt.Errorf("%w: must contain a special character", ErrWeakPassword)
	}

	return nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailAllowed reports whether the address belongs to one of domains.
// No configured domains means every domain is accepted.
func EmailAllowed(email string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	host := NormalizeEmail(email[at+1:])
	for _, d := range domains {
		d = strings.TrimPrefix(NormalizeEmail(d), "@")
		if d != "" && host == d {
			return true
		}
	}
	return false
}
