package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"taskhub/internal/auth"
	"taskhub/internal/domain"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/policy"
	"taskhub/internal/repository"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "invalid credentials")
	// ErrInvalidAdminSecret indicates the secret required to hold the ADMIN role is wrong.
	ErrInvalidAdminSecret = apperrors.New(apperrors.CodeForbidden, "invalid admin secret")
)

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Username    string
	Password    string
	Role        string
	AdminSecret string
}

// UpdateUserInput carries optional profile changes. Nil fields are left unchanged.
type UpdateUserInput struct {
	Username    *string
	Password    *string
	Role        *string
	AdminSecret string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, caller domain.Caller) ([]domain.User, error)
	Update(ctx context.Context, caller domain.Caller, id int64, input UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, caller domain.Caller, id int64) error
}

// UserConfig wires optional collaborators of the user service.
type UserConfig struct {
	Hasher *auth.PasswordHasher
	// AdminSecret, when set, must accompany any request that grants the ADMIN role.
	AdminSecret string
	// Exports is notified when an account is removed; nil disables cleanup.
	Exports ExportService
	Logger  *logrus.Logger
}

type userService struct {
	users       repository.UserRepository
	hasher      *auth.PasswordHasher
	adminSecret string
	exports     ExportService
	logger      *logrus.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(users repository.UserRepository, cfg UserConfig) UserService {
	if cfg.Hasher == nil {
		cfg.Hasher = auth.NewPasswordHasher(auth.MinPasswordCost)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &userService{
		users:       users,
		hasher:      cfg.Hasher,
		adminSecret: strings.TrimSpace(cfg.AdminSecret),
		exports:     cfg.Exports,
		logger:      cfg.Logger,
	}
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "username is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "password is required")
	}
	role, ok := domain.ParseRole(input.Role)
	if !ok {
		return nil, apperrors.New(apperrors.CodeValidation, "role must be USER or ADMIN")
	}
	if role == domain.RoleAdmin {
		if err := s.checkAdminSecret(input.AdminSecret); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, hashError(err, "registration failed")
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"op":      "user.register",
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("user registered")
	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			// spend the same bcrypt work as a real comparison
			_, _ = s.hasher.Verify(s.dummyPasswordHash(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "login failed", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) List(ctx context.Context, caller domain.Caller) ([]domain.User, error) {
	if d := policy.Decide(caller, policy.ActionListUsers, 0); !d.Allowed {
		return nil, apperrors.New(apperrors.CodeForbidden, "not allowed to list users")
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = *sanitizeUser(&users[i])
	}
	return users, nil
}

func (s *userService) Update(ctx context.Context, caller domain.Caller, id int64, input UpdateUserInput) (*domain.User, error) {
	if d := policy.Decide(caller, policy.ActionUpdateUser, id); !d.Allowed {
		return nil, apperrors.New(apperrors.CodeForbidden, "you can only update your own profile")
	}

	var update domain.UserUpdate
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "username must not be empty")
		}
		update.Username = &username
	}
	if input.Role != nil {
		role, ok := domain.ParseRole(*input.Role)
		if !ok {
			return nil, apperrors.New(apperrors.CodeValidation, "role must be USER or ADMIN")
		}
		if role == domain.RoleAdmin && !caller.IsAdmin() {
			if err := s.checkAdminSecret(input.AdminSecret); err != nil {
				return nil, err
			}
		}
		update.Role = &role
	}
	if input.Password != nil {
		if strings.TrimSpace(*input.Password) == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "password must not be empty")
		}
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, hashError(err, "update failed")
		}
		update.PasswordHash = &hash
	}

	user, err := s.users.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"op":               "user.update",
		"caller_id":        caller.UserID,
		"target_id":        id,
		"username_changed": update.Username != nil,
		"password_changed": update.PasswordHash != nil,
		"role_changed":     update.Role != nil,
	}).Info("user updated")
	return sanitizeUser(user), nil
}

func (s *userService) Delete(ctx context.Context, caller domain.Caller, id int64) error {
	if d := policy.Decide(caller, policy.ActionDeleteUser, id); !d.Allowed {
		return apperrors.New(apperrors.CodeForbidden, "you can only delete your own profile")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	entry := s.logger.WithFields(logrus.Fields{
		"op":        "user.delete",
		"caller_id": caller.UserID,
		"target_id": id,
		"role":      caller.Role,
	})
	if s.exports != nil && s.exports.Enabled() {
		if err := s.exports.PurgeUser(ctx, id); err != nil {
			entry.WithError(err).Warn("purge user exports")
		}
	}
	entry.Info("user deleted")
	return nil
}

func (s *userService) checkAdminSecret(provided string) error {
	if s.adminSecret == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(provided)), []byte(s.adminSecret)) != 1 {
		return ErrInvalidAdminSecret
	}
	return nil
}

// hashError keeps validation failures from the hasher and hides anything else.
func hashError(err error, message string) error {
	if apperrors.HasCode(err, apperrors.CodeValidation) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeInternal, message, err)
}

func (s *userService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("taskhub-dummy-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
