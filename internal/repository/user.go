package repository

import (
	"context"

	"taskhub/internal/domain"
)

// UserRepository defines persistence operations for User entities.
//
// Implementations report a missing row with errors.CodeNotFound and a
// username collision with errors.CodeConflict.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, id int64, update domain.UserUpdate) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
}
