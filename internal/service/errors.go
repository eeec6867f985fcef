package service

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("email already registered")
	ErrNotFound     = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Messages carried by UnauthorizedError. They are safe to show to clients.
const (
	MsgEmailIncorrect     = "Email incorrect"
	MsgInvalidPassword    = "Invalid password"
	MsgInvalidCredentials = "Invalid credentials"
	MsgInvalid2FACode     = "Invalid 2FA code"
	MsgUserNotFound       = "User not found"
	MsgRefreshNotFound    = "Refresh token not found or already revoked"
	MsgEmailNotExist      = "Email does not exist"
	MsgInvalidCode        = "Invalid code"
	MsgInvalidToken       = "Invalid or expired token"
	MsgInvalidRefresh     = "Invalid or expired refresh token"
)

// UnauthorizedError is a terminal authentication failure. It matches
// ErrUnauthorized and unwraps to the underlying cause, so callers can still
// test for auth.ErrTokenExpired.
type UnauthorizedError struct {
	Message string
	Err     error
}

func (e *UnauthorizedError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Err
}

func unauthorized(msg string, cause error) error {
	return &UnauthorizedError{Message: msg, Err: cause}
}

// InputError rejects a request before any state is touched.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidInput(msg string) error {
	return &InputError{Message: msg}
}

// PublicMessage returns the client-facing text of a service error, or ""
// when the error carries none.
func PublicMessage(err error) string {
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return ue.Message
	}
	var ie *InputError
	if errors.As(err, &ie) {
		return ie.Message
	}
	return ""
}
