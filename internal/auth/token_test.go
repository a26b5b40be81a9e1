package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskhub/internal/domain"
	apperrors "taskhub/internal/errors"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newTestManager(t *testing.T, now func() time.Time) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(TokenConfig{
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
		Now:    now,
	})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return m
}

func TestNewTokenManagerValidation(t *testing.T) {
	if _, err := NewTokenManager(TokenConfig{TTL: time.Hour}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewTokenManager(TokenConfig{Secret: []byte("s"), TTL: time.Minute}); err == nil {
		t.Fatal("expected error for short ttl")
	}
	if _, err := NewTokenManager(TokenConfig{Secret: []byte("s"), TTL: 48 * time.Hour}); err == nil {
		t.Fatal("expected error for long ttl")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, fixedClock(issued))

	user := domain.User{ID: 7, Username: "alice", Role: domain.RoleAdmin, PasswordHash: "never-in-token"}
	token, expiresAt, err := m.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(issued.Add(time.Hour)) {
		t.Fatalf("expected expiry %s, got %s", issued.Add(time.Hour), expiresAt)
	}
	if strings.Contains(token, "never-in-token") {
		t.Fatal("token must not embed the password hash")
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "alice" || claims.Role != domain.RoleAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.IssuedAt.Equal(issued) || !claims.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected timestamps %+v", claims)
	}
	if caller := claims.Caller(); caller.UserID != 7 || !caller.IsAdmin() {
		t.Fatalf("unexpected caller %+v", caller)
	}
}

func TestVerifyMissingTokenIsUnauthorized(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.Verify("   ")
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestVerifyExpiredTokenIsForbidden(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	m := newTestManager(t, func() time.Time { return now })

	token, _, err := m.Issue(domain.User{ID: 1, Username: "alice", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = issued.Add(59 * time.Minute)
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected token valid before expiry: %v", err)
	}

	now = issued.Add(time.Hour + time.Second)
	_, err = m.Verify(token)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestVerifyRejectsTamperedAndForeignTokens(t *testing.T) {
	m := newTestManager(t, nil)
	token, _, err := m.Issue(domain.User{ID: 1, Username: "alice", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewTokenManager(TokenConfig{Secret: []byte("other-secret"), TTL: time.Hour})
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	foreign, _, err := other.Issue(domain.User{ID: 1, Username: "alice", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := map[string]string{
		"garbage":  "not-a-jwt",
		"tampered": token[:len(token)-2] + "xx",
		"foreign":  foreign,
	}
	for name, tok := range tests {
		if _, err := m.Verify(tok); !apperrors.HasCode(err, apperrors.CodeForbidden) {
			t.Errorf("%s: expected forbidden, got %v", name, err)
		}
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	m := newTestManager(t, nil)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: "alice",
		Role:     "ADMIN",
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(unsigned); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	m := newTestManager(t, nil)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: "alice",
		Role:     "ROOT",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(signed); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
