// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskhub/internal/domain"
	apperrors "taskhub/internal/errors"
)

const (
	// MinTokenTTL and MaxTokenTTL bound the accepted session lifetime.
	MinTokenTTL = time.Hour
	MaxTokenTTL = 24 * time.Hour

	signingMethod = "HS256"
)

// Claims is the verified content of a session token.
type Claims struct {
	UserID    int64
	Username  string
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Caller returns the identity the claims assert.
func (c Claims) Caller() domain.Caller {
	return domain.Caller{
		UserID:   c.UserID,
		Username: c.Username,
		Role:     c.Role,
	}
}

// sessionClaims is the JWT payload; sub carries the user id.
type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// TokenManager signs and verifies HS256 session tokens with a fixed secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager validates cfg and returns a manager bound to it.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL < MinTokenTTL || cfg.TTL > MaxTokenTTL {
		return nil, fmt.Errorf("token ttl must be between %s and %s", MinTokenTTL, MaxTokenTTL)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &TokenManager{
		secret: secret,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a token for user and returns it with its expiry.
func (m *TokenManager) Issue(user domain.User) (string, time.Time, error) {
	issuedAt := m.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(m.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: user.Username,
		Role:     string(user.Role),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(apperrors.CodeInternal, "sign token", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry. An empty token is CodeUnauthorized;
// any present but unusable token is CodeForbidden.
func (m *TokenManager) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthorized, "authentication token missing")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	userID, err := strconv.ParseInt(parsed.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, apperrors.New(apperrors.CodeForbidden, "token subject is invalid")
	}
	role, ok := domain.ParseRole(parsed.Role)
	if !ok || parsed.Role == "" {
		return Claims{}, apperrors.New(apperrors.CodeForbidden, "token role is invalid")
	}

	claims := Claims{
		UserID:    userID,
		Username:  parsed.Username,
		Role:      role,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.Wrap(apperrors.CodeForbidden, "token is expired", err)
	}
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.Wrap(apperrors.CodeForbidden, "token signature is invalid", err)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.CodeForbidden, "token alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeForbidden, "token is invalid", err)
}
