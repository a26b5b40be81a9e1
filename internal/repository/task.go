package repository

import (
	"context"

	"taskhub/internal/domain"
)

// TaskRepository exposes persistence operations for Task aggregates.
//
// Every single-task operation is scoped by owner inside the statement
// itself, so a task owned by someone else behaves exactly like a missing one
// and yields errors.CodeNotFound.
type TaskRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, task *domain.Task) (int64, error)
	Get(ctx context.Context, id, ownerID int64) (*domain.Task, error)
	List(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)
	Update(ctx context.Context, id, ownerID int64, update domain.TaskUpdate) (*domain.Task, error)
	Delete(ctx context.Context, id, ownerID int64) error
}
