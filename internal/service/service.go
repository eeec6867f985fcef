package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"booking_service/internal/auth"
	"booking_service/internal/mail"
	"booking_service/internal/metrics"
	"booking_service/internal/models"
	"booking_service/internal/storage"
)

type Service interface {
	RequestLogin(ctx context.Context, email, password string) (challenge string, err error)
	Login(ctx context.Context, code, challenge string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Me(ctx context.Context, accessToken, refreshToken string) (models.Identity, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
	Logout(ctx context.Context, userID int64) error
	RequestPasswordReset(ctx context.Context, email string) (challenge string, err error)
	ResetPassword(ctx context.Context, code, newPassword, challenge string) error

	CreateUser(ctx context.Context, in NewUser) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, userID int64, in UserUpdate) (models.User, error)
	UpdateProfile(ctx context.Context, userID int64, name string) (models.User, error)
	DeleteUser(ctx context.Context, userID int64) error
	PurgeExpiredTokens(ctx context.Context) (int64, error)

	ValidateEmail(email string) error
}

type Config struct {
	// UniformErrors replaces the account-revealing login and reset messages
	// with MsgInvalidCredentials.
	UniformErrors       bool
	AllowedEmailDomains []string
}

type Option func(*service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithClock overrides the time used for ledger lookups and purges. It should
// match the clock given to the token codec.
func WithClock(fn func() time.Time) Option {
	return func(s *service) {
		if fn != nil {
			s.now = fn
		}
	}
}

type service struct {
	storage   storage.Storage
	tokens    *auth.TokenCodec
	hasher    auth.PasswordHasher
	sender    mail.Sender
	templates *mail.Templates
	metrics   *metrics.Metrics
	log       *slog.Logger
	cfg       Config
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(
	st storage.Storage,
	tokens *auth.TokenCodec,
	hasher auth.PasswordHasher,
	sender mail.Sender,
	templates *mail.Templates,
	cfg Config,
	log *slog.Logger,
	opts ...Option,
) *service {
	s := &service{
		storage:   st,
		tokens:    tokens,
		hasher:    hasher,
		sender:    sender,
		templates: templates,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) RequestLogin(ctx context.Context, email, password string) (challenge string, err error) {
	const op = "service.RequestLogin"

	log := s.log.With(slog.String("op", op))
	defer s.observe("request_login", &err)

	user, err := s.storage.GetUserByEmail(ctx, auth.NormalizeEmail(email))
	if errors.Is(err, storage.ErrUserNotFound) {
		s.burnPasswordCheck(password)
		log.Warn("login requested for unknown email")

		return "", unauthorized(s.credentialsMessage(MsgEmailIncorrect), nil)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		log.Warn("invalid password", slog.Int64("user_id", user.ID))

		return "", unauthorized(s.credentialsMessage(MsgInvalidPassword), nil)
	}

	challenge, err = s.sendChallenge(ctx, user, mail.KindTwoFactor)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("2fa code sent", slog.Int64("user_id", user.ID))

	return challenge, nil
}

func (s *service) Login(ctx context.Context, code, challenge string) (pair models.TokenPair, err error) {
	const op = "service.Login"

	log := s.log.With(slog.String("op", op))
	defer s.observe("login", &err)

	claims, err := s.tokens.VerifyChallenge(challenge)
	if err != nil {
		return models.TokenPair{}, unauthorized(MsgInvalidToken, err)
	}
	if !auth.CodesEqual(claims.Code, code) {
		log.Warn("invalid 2fa code", slog.Int64("user_id", claims.UserID))

		return models.TokenPair{}, unauthorized(MsgInvalid2FACode, nil)
	}

	user, err := s.storage.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.TokenPair{}, unauthorized(MsgUserNotFound, err)
	}
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err = s.issuePair(user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.ReplaceRefreshTokens(ctx, user.ID, s.tokens.Digest(pair.RefreshToken), pair.RefreshExpiresAt)
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.TokenPair{}, unauthorized(MsgUserNotFound, err)
	}
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.Int64("user_id", user.ID))

	return pair, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (pair models.TokenPair, err error) {
	const op = "service.Refresh"

	log := s.log.With(slog.String("op", op))
	defer s.observe("refresh", &err)

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return models.TokenPair{}, unauthorized(MsgInvalidRefresh, err)
	}

	row, err := s.storage.FindActiveRefreshToken(ctx, claims.UserID, s.tokens.Digest(refreshToken), s.now())
	if errors.Is(err, storage.ErrTokenNotFound) {
		log.Warn("refresh token not active", slog.Int64("user_id", claims.UserID))

		return models.TokenPair{}, unauthorized(MsgRefreshNotFound, err)
	}
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	// Claims are re-read from the store so role and name changes reach the
	// next access token.
	user, err := s.storage.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.TokenPair{}, unauthorized(MsgUserNotFound, err)
	}
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err = s.issuePair(user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.RotateRefreshToken(ctx, row.ID, user.ID, s.tokens.Digest(pair.RefreshToken), pair.RefreshExpiresAt)
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.TokenPair{}, unauthorized(MsgUserNotFound, err)
	}
	if errors.Is(err, storage.ErrTokenNotFound) {
		log.Warn("refresh token rotated concurrently", slog.Int64("user_id", user.ID))

		return models.TokenPair{}, unauthorized(MsgRefreshNotFound, err)
	}
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("tokens rotated", slog.Int64("user_id", user.ID))

	return pair, nil
}

// Me describes the bearer of accessToken. An expired access token yields an
// error matching auth.ErrTokenExpired so the caller can refresh and retry.
func (s *service) Me(_ context.Context, accessToken, refreshToken string) (models.Identity, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return models.Identity{}, unauthorized(MsgInvalidToken, err)
	}

	identity := models.Identity{
		Sub:   claims.UserID,
		Name:  claims.Name,
		Email: claims.Email,
		Role:  claims.Role,
		Exp:   claims.ExpiresAt.Unix(),
	}
	if claims.IssuedAt != nil {
		identity.Iat = claims.IssuedAt.Unix()
	}

	// The refresh token is only echoed for display; one that fails to verify
	// or belongs to someone else is ignored.
	if refreshToken != "" {
		rc, err := s.tokens.VerifyRefresh(refreshToken)
		if err == nil && rc.UserID == claims.UserID {
			exp := rc.ExpiresAt.Unix()
			identity.RefreshTokenExp = &exp
			if rc.IssuedAt != nil {
				iat := rc.IssuedAt.Unix()
				identity.RefreshTokenIat = &iat
			}
		}
	}

	return identity, nil
}

func (s *service) Authenticate(_ context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, unauthorized(MsgInvalidToken, err)
	}

	return claims, nil
}

// Logout revokes every active refresh token of the user. Access tokens stay
// valid until they expire.
func (s *service) Logout(ctx context.Context, userID int64) (err error) {
	const op = "service.Logout"

	log := s.log.With(slog.String("op", op))
	defer s.observe("logout", &err)

	revoked, err := s.storage.RevokeAllActive(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out", slog.Int64("user_id", userID), slog.Int64("revoked", revoked))

	return nil
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) (challenge string, err error) {
	const op = "service.RequestPasswordReset"

	log := s.log.With(slog.String("op", op))
	defer s.observe("request_password_reset", &err)

	user, err := s.storage.GetUserByEmail(ctx, auth.NormalizeEmail(email))
	if errors.Is(err, storage.ErrUserNotFound) {
		log.Warn("password reset requested for unknown email")

		return "", unauthorized(s.credentialsMessage(MsgEmailNotExist), nil)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	challenge, err = s.sendChallenge(ctx, user, mail.KindReset)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reset code sent", slog.Int64("user_id", user.ID))

	return challenge, nil
}

// ResetPassword stores the new password and revokes the user's refresh
// tokens. It does not log the user in.
func (s *service) ResetPassword(ctx context.Context, code, newPassword, challenge string) (err error) {
	const op = "service.ResetPassword"

	log := s.log.With(slog.String("op", op))
	defer s.observe("reset_password", &err)

	claims, err := s.tokens.VerifyChallenge(challenge)
	if err != nil {
		return unauthorized(MsgInvalidToken, err)
	}
	if !auth.CodesEqual(claims.Code, code) {
		log.Warn("invalid reset code", slog.Int64("user_id", claims.UserID))

		return unauthorized(MsgInvalidCode, nil)
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return invalidInput(passwordMessage(err))
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.storage.UpdatePassword(ctx, claims.UserID, hash)
	if errors.Is(err, storage.ErrUserNotFound) {
		return unauthorized(MsgUserNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.RevokeAllActive(ctx, claims.UserID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset", slog.Int64("user_id", claims.UserID))

	return nil
}

func (s *service) issuePair(user models.User) (models.TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccess(user)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// sendChallenge draws a code, mails it to the user and returns the challenge
// token that binds the code to the user id.
func (s *service) sendChallenge(ctx context.Context, user models.User, kind mail.CodeKind) (string, error) {
	code, err := auth.NewCode()
	if err != nil {
		return "", err
	}

	challenge, err := s.tokens.IssueChallenge(user.ID, code)
	if err != nil {
		return "", err
	}

	subject, body, err := s.templates.Code(kind, user.Name, code, s.tokens.ChallengeTTL())
	if err != nil {
		return "", err
	}

	if err := s.sender.Send(ctx, user.Email, subject, body); err != nil {
		return "", err
	}

	return challenge, nil
}

func (s *service) credentialsMessage(msg string) string {
	if s.cfg.UniformErrors {
		return MsgInvalidCredentials
	}
	return msg
}

// burnPasswordCheck spends one hash verification on unknown emails so the
// response time does not reveal whether the account exists.
func (s *service) burnPasswordCheck(password string) {
	if !s.cfg.UniformErrors {
		return
	}

	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("unused-Passw0rd!")
		if err != nil {
			s.log.Error("failed to prepare dummy hash", slog.Any("error", err))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(s.dummyHash, password)
	}
}

func (s *service) observe(operation string, errp *error) {
	switch err := *errp; {
	case err == nil:
		s.metrics.AuthOperation(operation, metrics.ResultSuccess)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidInput):
		s.metrics.AuthOperation(operation, metrics.ResultFailure)
	default:
		s.metrics.AuthOperation(operation, metrics.ResultError)
	}
}
