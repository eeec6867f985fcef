package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken covers bad signatures, malformed payloads and expiry.
	ErrInvalidToken = errors.New("auth: token expired or invalid")

	// ErrTokenExpired is returned when the only problem with a token is its
	// expiry. It matches ErrInvalidToken under errors.Is.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	ErrInvalidHash  = errors.New("auth: invalid password hash")
	ErrWeakPassword = errors.New("auth: password does not meet policy")
)
