package auth

import (
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"booking_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL    = 15 * time.Minute
	DefaultRefreshTTL   = 7 * 24 * time.Hour
	DefaultChallengeTTL = 15 * time.Minute
)

// Claims is the payload shared by access and refresh tokens.
// UserID shadows RegisteredClaims.Subject so "sub" stays numeric on the wire.
type Claims struct {
	UserID int64       `json:"sub"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// ChallengeClaims binds a pending 2FA login or password reset to a code.
type ChallengeClaims struct {
	UserID int64  `json:"sub"`
	Code   string `json:"code"`
	jwt.RegisteredClaims
}

// Keys holds the signing material. Access and challenge tokens share the RSA
// pair, refresh tokens use RefreshSecret, ledger digests use HashSecret.
type Keys struct {
	PrivateKeyPEM string
	PublicKeyPEM  string
	RefreshSecret string
	HashSecret    string
}

type TokenCodec struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	refreshSecret []byte
	hashSecret    []byte

	accessTTL    time.Duration
	refreshTTL   time.Duration
	challengeTTL time.Duration

	now func() time.Time
}

type Option func(*TokenCodec)

func WithAccessTTL(ttl time.Duration) Option {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

func WithChallengeTTL(ttl time.Duration) Option {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.challengeTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *TokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

func NewTokenCodec(keys Keys, opts ...Option) (*TokenCodec, error) {
	const op = "auth.NewTokenCodec"

	priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(strings.TrimSpace(keys.PrivateKeyPEM)))
	if err != nil {
		return nil, fmt.Errorf("%s: parse private key: %w", op, err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(strings.TrimSpace(keys.PublicKeyPEM)))
	if err != nil {
		return nil, fmt.Errorf("%s: parse public key: %w", op, err)
	}
	if !priv.PublicKey.Equal(pub) {
		return nil, fmt.Errorf("%s: public key does not match private key", op)
	}
	if keys.RefreshSecret == "" || keys.HashSecret == "" {
		return nil, fmt.Errorf("%s: refresh and hash secrets are required", op)
	}
	if keys.RefreshSecret == keys.HashSecret {
		return nil, fmt.Errorf("%s: refresh and hash secrets must differ", op)
	}

	c := &TokenCodec{
		privateKey:    priv,
		publicKey:     pub,
		refreshSecret: []byte(keys.RefreshSecret),
		hashSecret:    []byte(keys.HashSecret),
		accessTTL:     DefaultAccessTTL,
		refreshTTL:    DefaultRefreshTTL,
		challengeTTL:  DefaultChallengeTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *TokenCodec) AccessTTL() time.Duration    { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration   { return c.refreshTTL }
func (c *TokenCodec) ChallengeTTL() time.Duration { return c.challengeTTL }

// IssueAccess signs a short-lived RS256 access token for user.
func (c *TokenCodec) IssueAccess(user models.User) (string, time.Time, error) {
	claims := c.principalClaims(user, c.accessTTL)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.IssueAccess: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

func (c *TokenCodec) VerifyAccess(token string) (*Claims, error) {
	claims := &Claims{}
	if err := c.parse(token, claims, jwt.SigningMethodRS256, c.publicKey); err != nil {
		return nil, err
	}
	if !claims.valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// IssueRefresh signs an HS256 refresh token. Every token carries a random jti,
// so two tokens minted for the same user in the same second still differ.
func (c *TokenCodec) IssueRefresh(user models.User) (string, time.Time, error) {
	claims := c.principalClaims(user, c.refreshTTL)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.IssueRefresh: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

func (c *TokenCodec) VerifyRefresh(token string) (*Claims, error) {
	claims := &Claims{}
	if err := c.parse(token, claims, jwt.SigningMethodHS256, c.refreshSecret); err != nil {
		return nil, err
	}
	if !claims.valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// IssueChallenge signs {sub, code} with the access key.
func (c *TokenCodec) IssueChallenge(userID int64, code string) (string, error) {
	now := c.now()
	claims := ChallengeClaims{
		UserID: userID,
		Code:   code,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.challengeTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("auth.IssueChallenge: %w", err)
	}

	return signed, nil
}

func (c *TokenCodec) VerifyChallenge(token string) (*ChallengeClaims, error) {
	claims := &ChallengeClaims{}
	if err := c.parse(token, claims, jwt.SigningMethodRS256, c.publicKey); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 || claims.Code == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Digest returns the hex HMAC-SHA256 of a refresh token, the only form in
// which refresh tokens reach the ledger.
func (c *TokenCodec) Digest(token string) string {
	mac := hmac.New(sha256.New, c.hashSecret)
	_, _ = mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *TokenCodec) principalClaims(user models.User, ttl time.Duration) Claims {
	now := c.now()
	return Claims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func (c *TokenCodec) parse(token string, claims jwt.Claims, method jwt.SigningMethod, key any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}

	return nil
}

// valid rejects payloads that verify but do not describe a principal,
// such as a challenge token presented as an access token.
func (c *Claims) valid() bool {
	return c.UserID > 0 && c.Email != "" && c.Role.Valid()
}
