package storage

import (
	"context"
	"errors"
	"time"

	"booking_service/internal/models"
)

const (
	usersTable         = "users"
	refreshTokensTable = "refresh_tokens"
)

var (
	ErrUserNotFound  = errors.New("storage: user not found")
	ErrUserExists    = errors.New("storage: user already exists")
	ErrTokenNotFound = errors.New("storage: refresh token not found or not active")
)

// UserStorage is the credential store.
type UserStorage interface {
	CreateUser(ctx context.Context, user models.User) (userID int64, err error)
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	// UpdateUser overwrites name, email, role and password hash of user.ID.
	// A taken email yields ErrUserExists.
	UpdateUser(ctx context.Context, user models.User) error
	// DeleteUser removes the user and all of its refresh token rows in one transaction.
	DeleteUser(ctx context.Context, userID int64) error
}

// RefreshTokenStorage is the refresh token ledger. Rows are immutable except
// for the revoked flag.
type RefreshTokenStorage interface {
	// RevokeAllActive flips every non-revoked row of the user. Idempotent.
	// Writers of one user's rows are serialized with each other.
	RevokeAllActive(ctx context.Context, userID int64) (revoked int64, err error)
	StoreRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (tokenID int64, err error)
	// ReplaceRefreshTokens revokes all active rows of the user and stores the
	// new one in a single transaction.
	ReplaceRefreshTokens(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (tokenID int64, err error)
	// FindActiveRefreshToken returns ErrTokenNotFound unless the row exists,
	// is not revoked and expires after now.
	FindActiveRefreshToken(ctx context.Context, userID int64, tokenHash string, now time.Time) (models.RefreshToken, error)
	// RotateRefreshToken revokes oldID and stores the replacement atomically.
	// When oldID is no longer active it returns ErrTokenNotFound and stores nothing,
	// so of two concurrent rotations of the same row exactly one succeeds.
	RotateRefreshToken(ctx context.Context, oldID, userID int64, newHash string, newExpiresAt time.Time) (tokenID int64, err error)
	// PurgeExpiredRevoked deletes rows that are both revoked and expired before now.
	PurgeExpiredRevoked(ctx context.Context, now time.Time) (deleted int64, err error)
}

type Storage interface {
	UserStorage
	RefreshTokenStorage

	Close()
}
