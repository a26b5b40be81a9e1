package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskhub/internal/domain"
	apperrors "taskhub/internal/errors"
)

func TestRegisterReturnsSanitizedUser(t *testing.T) {
	env := newTestEnv(t, "")
	user, err := env.userSvc.Register(context.Background(), RegisterInput{Username: "  alice ", Password: "pw1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == 0 || user.Username != "alice" || user.Role != domain.RoleUser {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash != "" {
		t.Fatal("password hash must not be returned")
	}

	stored, err := env.users.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "pw1" {
		t.Fatalf("expected a bcrypt hash to be stored, got %q", stored.PasswordHash)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	tests := map[string]RegisterInput{
		"empty username": {Username: " ", Password: "pw"},
		"empty password": {Username: "alice", Password: ""},
		"unknown role":   {Username: "alice", Password: "pw", Role: "ROOT"},
		"long password":  {Username: "alice", Password: strings.Repeat("a", 73)},
	}
	for name, input := range tests {
		if _, err := env.userSvc.Register(ctx, input); !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestRegisterDuplicateUsernameConflicts(t *testing.T) {
	env := newTestEnv(t, "")
	env.register(t, "alice", domain.RoleUser, "")

	_, err := env.userSvc.Register(context.Background(), RegisterInput{Username: "alice", Password: "other"})
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterAdminRequiresSecretWhenConfigured(t *testing.T) {
	env := newTestEnv(t, "let-me-in")
	ctx := context.Background()

	_, err := env.userSvc.Register(ctx, RegisterInput{Username: "root", Password: "pw", Role: "ADMIN", AdminSecret: "nope"})
	if !errors.Is(err, ErrInvalidAdminSecret) {
		t.Fatalf("expected invalid admin secret, got %v", err)
	}

	caller := env.register(t, "root", domain.RoleAdmin, "let-me-in")
	if !caller.IsAdmin() {
		t.Fatalf("expected admin, got %+v", caller)
	}
}

func TestRegisterAdminOpenWithoutSecret(t *testing.T) {
	env := newTestEnv(t, "")
	caller := env.register(t, "root", domain.RoleAdmin, "")
	if !caller.IsAdmin() {
		t.Fatalf("expected admin, got %+v", caller)
	}
}

func TestAuthenticateDoesNotDistinguishFailures(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.register(t, "alice", domain.RoleUser, "")

	user, err := env.userSvc.Authenticate(ctx, "alice", "pw-alice")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Username != "alice" || user.PasswordHash != "" {
		t.Fatalf("unexpected user %+v", user)
	}

	_, wrongPassword := env.userSvc.Authenticate(ctx, "alice", "nope")
	_, unknownUser := env.userSvc.Authenticate(ctx, "mallory", "nope")
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v and %v", wrongPassword, unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatalf("failures must be indistinguishable: %q vs %q", wrongPassword, unknownUser)
	}
}

func TestUpdateOnlySelf(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.register(t, "alice", domain.RoleUser, "")
	bob := env.register(t, "bob", domain.RoleUser, "")
	admin := env.register(t, "root", domain.RoleAdmin, "")

	name := "hijacked"
	if _, err := env.userSvc.Update(ctx, bob, alice.UserID, UpdateUserInput{Username: &name}); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := env.userSvc.Update(ctx, admin, alice.UserID, UpdateUserInput{Username: &name}); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden for admin, got %v", err)
	}
}

func TestUpdateRenamesAndRehashes(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.register(t, "alice", domain.RoleUser, "")

	name := "alice2"
	password := "new-password"
	updated, err := env.userSvc.Update(ctx, alice, alice.UserID, UpdateUserInput{Username: &name, Password: &password})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Username != "alice2" || updated.PasswordHash != "" {
		t.Fatalf("unexpected user %+v", updated)
	}

	if _, err := env.userSvc.Authenticate(ctx, "alice2", "new-password"); err != nil {
		t.Fatalf("expected new credentials to work: %v", err)
	}
	if _, err := env.userSvc.Authenticate(ctx, "alice2", "pw-alice"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
}

func TestPasswordLengthLimit(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	if _, err := env.userSvc.Register(ctx, RegisterInput{Username: "carol", Password: strings.Repeat("a", 72)}); err != nil {
		t.Fatalf("72 byte password should register: %v", err)
	}

	alice := env.register(t, "alice", domain.RoleUser, "")
	long := strings.Repeat("b", 73)
	_, err := env.userSvc.Update(ctx, alice, alice.UserID, UpdateUserInput{Password: &long})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.userSvc.Authenticate(ctx, "alice", "pw-alice"); err != nil {
		t.Fatalf("rejected update must keep the old password: %v", err)
	}
}

func TestUpdateValidationAndConflict(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.register(t, "alice", domain.RoleUser, "")
	env.register(t, "bob", domain.RoleUser, "")

	empty := "  "
	if _, err := env.userSvc.Update(ctx, alice, alice.UserID, UpdateUserInput{Username: &empty}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	bad := "ROOT"
	if _, err := env.userSvc.Update(ctx, alice, alice.UserID, UpdateUserInput{Role: &bad}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	taken := "bob"
	if _, err := env.userSvc.Update(ctx, alice, alice.UserID, UpdateUserInput{Username: &taken}); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdatePromotionRequiresSecret(t *testing.T) {
	env := newTestEnv(t, "let-me-in")
	ctx := context.Background()
	alice := env.register(t, "alice", domain.RoleUser, "")

	admin := "ADMIN"
	if _, err := env.userSvc.Update(ctx, alice, alice.UserID, UpdateUserInput{Role: &admin}); !errors.Is(err, ErrInvalidAdminSecret) {
		t.Fatalf("expected invalid admin secret, got %v", err)
	}
	updated, err := env.userSvc.Update(ctx, alice, alice.UserID, UpdateUserInput{Role: &admin, AdminSecret: "let-me-in"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Role != domain.RoleAdmin {
		t.Fatalf("expected ADMIN, got %s", updated.Role)
	}
}

func TestDeleteSelfOrAdmin(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.register(t, "alice", domain.RoleUser, "")
	bob := env.register(t, "bob", domain.RoleUser, "")
	admin := env.register(t, "root", domain.RoleAdmin, "")

	if err := env.userSvc.Delete(ctx, bob, alice.UserID); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := env.userSvc.Delete(ctx, admin, alice.UserID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if err := env.userSvc.Delete(ctx, bob, bob.UserID); err != nil {
		t.Fatalf("self delete: %v", err)
	}
	if err := env.userSvc.Delete(ctx, admin, bob.UserID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeletePurgesExports(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	alice := env.register(t, "alice", domain.RoleUser, "")
	bob := env.register(t, "bob", domain.RoleUser, "")

	if _, err := env.export.ExportTasks(ctx, alice); err != nil {
		t.Fatalf("export alice: %v", err)
	}
	if _, err := env.export.ExportTasks(ctx, bob); err != nil {
		t.Fatalf("export bob: %v", err)
	}

	if err := env.userSvc.Delete(ctx, alice, alice.UserID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	left, err := env.store.ListObjects(ctx, "exports", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 1 {
		t.Fatalf("expected only bob's export to remain, got %+v", left)
	}
}

func TestListUsersIsSanitized(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.register(t, "alice", domain.RoleUser, "")
	env.register(t, "bob", domain.RoleUser, "")

	users, err := env.userSvc.List(context.Background(), alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.PasswordHash != "" {
			t.Fatalf("password hash leaked for %s", u.Username)
		}
	}
}
