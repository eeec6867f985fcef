package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"booking_service/internal/models"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps users and ledger rows in process memory. Every method
// holds mu for its whole duration.
type MemoryStorage struct {
	mu sync.Mutex

	users     map[int64]models.User
	tokens    map[int64]models.RefreshToken
	nextUser  int64
	nextToken int64

	now func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:  make(map[int64]models.User),
		tokens: make(map[int64]models.RefreshToken),
		now:    time.Now,
	}
}

func (m *MemoryStorage) CreateUser(_ context.Context, user models.User) (int64, error) {
	const op = "storage.CreateUser"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return 0, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
	}

	m.nextUser++
	now := m.now()
	user.ID = m.nextUser
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user

	return user.ID, nil
}

func (m *MemoryStorage) GetUserByID(_ context.Context, userID int64) (models.User, error) {
	const op = "storage.GetUserByID"

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return user, nil
}

func (m *MemoryStorage) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}

	return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
}

func (m *MemoryStorage) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})

	return users, nil
}

func (m *MemoryStorage) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	const op = "storage.UpdatePassword"

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = m.now()
	m.users[userID] = user

	return nil
}

func (m *MemoryStorage) UpdateUser(_ context.Context, user models.User) error {
	const op = "storage.UpdateUser"

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.users[user.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	for id, u := range m.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%s: %w", op, ErrUserExists)
		}
	}

	current.Name = user.Name
	current.Email = user.Email
	current.Role = user.Role
	current.PasswordHash = user.PasswordHash
	current.UpdatedAt = m.now()
	m.users[user.ID] = current

	return nil
}

func (m *MemoryStorage) DeleteUser(_ context.Context, userID int64) error {
	const op = "storage.DeleteUser"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	for id, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, id)
		}
	}
	delete(m.users, userID)

	return nil
}

func (m *MemoryStorage) RevokeAllActive(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.revokeAllLocked(userID), nil
}

func (m *MemoryStorage) StoreRefreshToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	const op = "storage.StoreRefreshToken"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return 0, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return m.insertLocked(userID, tokenHash, expiresAt), nil
}

func (m *MemoryStorage) ReplaceRefreshTokens(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) (int64, error) {
	const op = "storage.ReplaceRefreshTokens"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return 0, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	m.revokeAllLocked(userID)

	return m.insertLocked(userID, tokenHash, expiresAt), nil
}

func (m *MemoryStorage) FindActiveRefreshToken(_ context.Context, userID int64, tokenHash string, now time.Time) (models.RefreshToken, error) {
	const op = "storage.FindActiveRefreshToken"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tokens {
		if t.UserID == userID && t.TokenHash == tokenHash && t.Active(now) {
			return t, nil
		}
	}

	return models.RefreshToken{}, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
}

func (m *MemoryStorage) RotateRefreshToken(_ context.Context, oldID, userID int64, newHash string, newExpiresAt time.Time) (int64, error) {
	const op = "storage.RotateRefreshToken"

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.tokens[oldID]
	if !ok || old.UserID != userID || old.IsRevoked {
		return 0, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
	}
	old.IsRevoked = true
	m.tokens[oldID] = old

	return m.insertLocked(userID, newHash, newExpiresAt), nil
}

func (m *MemoryStorage) PurgeExpiredRevoked(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, t := range m.tokens {
		if t.IsRevoked && t.ExpiresAt.Before(now) {
			delete(m.tokens, id)
			deleted++
		}
	}

	return deleted, nil
}

// RefreshTokens returns a copy of the user's ledger rows ordered by id.
func (m *MemoryStorage) RefreshTokens(userID int64) []models.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []models.RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	return rows
}

func (m *MemoryStorage) Close() {}

func (m *MemoryStorage) revokeAllLocked(userID int64) int64 {
	var revoked int64
	for id, t := range m.tokens {
		if t.UserID == userID && !t.IsRevoked {
			t.IsRevoked = true
			m.tokens[id] = t
			revoked++
		}
	}
	return revoked
}

func (m *MemoryStorage) insertLocked(userID int64, tokenHash string, expiresAt time.Time) int64 {
	m.nextToken++
	m.tokens[m.nextToken] = models.RefreshToken{
		ID:        m.nextToken,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
	return m.nextToken
}
