package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"sort"
	"strings"
	"unicode/utf8"

	"booking_service/internal/auth"
	"booking_service/internal/models"
	"booking_service/internal/storage"
)

const (
	nameMinLength = 3
	nameMaxLength = 50
)

type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

func (s *service) CreateUser(ctx context.Context, in NewUser) (models.User, error) {
	const op = "service.CreateUser"

	log := s.log.With(slog.String("op", op))

	in.Name = strings.TrimSpace(in.Name)
	in.Email = auth.NormalizeEmail(in.Email)
	if err := s.validateNewUser(in); err != nil {
		return models.User{}, err
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.storage.CreateUser(ctx, models.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: passwordHash,
	})
	if errors.Is(err, storage.ErrUserExists) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrConflict)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user created", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))

	return user, nil
}

// UserUpdate holds the fields to change; nil leaves a field as it is.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *models.Role
}

// UpdateUser applies in to the user. A new password is hashed with the
// pepper like at creation. Role and name changes reach the next access token
// issued by Refresh.
func (s *service) UpdateUser(ctx context.Context, userID int64, in UserUpdate) (models.User, error) {
	const op = "service.UpdateUser"

	log := s.log.With(slog.String("op", op))

	user, err := s.storage.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return models.User{}, err
		}
		user.Name = name
	}
	if in.Email != nil {
		email := auth.NormalizeEmail(*in.Email)
		if err := s.ValidateEmail(email); err != nil {
			return models.User{}, err
		}
		user.Email = email
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return models.User{}, invalidInput("Unknown role")
		}
		user.Role = *in.Role
	}
	if in.Password != nil {
		if err := auth.ValidatePassword(*in.Password); err != nil {
			return models.User{}, invalidInput(passwordMessage(err))
		}
		user.PasswordHash, err = s.hasher.Hash(*in.Password)
		if err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	err = s.storage.UpdateUser(ctx, user)
	if errors.Is(err, storage.ErrUserExists) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrConflict)
	}
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err = s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user updated", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))

	return user, nil
}

// UpdateProfile lets a signed-in user change their own name.
func (s *service) UpdateProfile(ctx context.Context, userID int64, name string) (models.User, error) {
	return s.UpdateUser(ctx, userID, UserUpdate{Name: &name})
}

// ListUsers orders users by role (ADMIN, COORDINATOR, ASSISTANT) and then
// newest first.
func (s *service) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "service.ListUsers"

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sort.SliceStable(users, func(i, j int) bool {
		pi, pj := users[i].Role.Priority(), users[j].Role.Priority()
		if pi != pj {
			return pi < pj
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})

	return users, nil
}

// DeleteUser removes the user together with its refresh tokens.
func (s *service) DeleteUser(ctx context.Context, userID int64) error {
	const op = "service.DeleteUser"

	err := s.storage.DeleteUser(ctx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user deleted", slog.String("op", op), slog.Int64("user_id", userID))

	return nil
}

func (s *service) validateNewUser(in NewUser) error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	if err := s.ValidateEmail(in.Email); err != nil {
		return err
	}
	if !in.Role.Valid() {
		return invalidInput("Unknown role")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return invalidInput(passwordMessage(err))
	}

	return nil
}

func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n < nameMinLength || n > nameMaxLength {
		return invalidInput(fmt.Sprintf("Name must be between %d and %d characters", nameMinLength, nameMaxLength))
	}

	return nil
}

// ValidateEmail checks the address format and the allowed domains.
func (s *service) ValidateEmail(email string) error {
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalidInput("Invalid email format")
	}
	if !auth.EmailAllowed(email, s.cfg.AllowedEmailDomains) {
		return invalidInput("Email must belong to one of: " + strings.Join(s.cfg.AllowedEmailDomains, ", "))
	}

	return nil
}

func passwordMessage(err error) string {
	detail := strings.TrimPrefix(err.Error(), auth.ErrWeakPassword.Error()+": ")
	return "Password " + detail
}
