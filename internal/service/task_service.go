package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"taskhub/internal/domain"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/policy"
	"taskhub/internal/repository"
)

// CreateTaskInput is the payload accepted by CreateTask.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
}

// UpdateTaskInput replaces a task's title and optionally its description and status.
type UpdateTaskInput struct {
	Title       string
	Description *string
	Status      *string
}

// TaskService coordinates task level operations on behalf of a caller.
type TaskService interface {
	CreateTask(ctx context.Context, caller domain.Caller, input CreateTaskInput) (*domain.Task, error)
	GetTask(ctx context.Context, caller domain.Caller, id int64) (*domain.Task, error)
	ListTasks(ctx context.Context, caller domain.Caller) ([]domain.Task, error)
	ListOwnTasks(ctx context.Context, caller domain.Caller) ([]domain.Task, error)
	UpdateTask(ctx context.Context, caller domain.Caller, id int64, input UpdateTaskInput) (*domain.Task, error)
	DeleteTask(ctx context.Context, caller domain.Caller, id int64) error
}

type taskService struct {
	tasks  repository.TaskRepository
	logger *logrus.Logger
}

func NewTaskService(tasks repository.TaskRepository, logger *logrus.Logger) TaskService {
	if logger == nil {
		logger = logrus.New()
	}
	return &taskService{
		tasks:  tasks,
		logger: logger,
	}
}

func (s *taskService) CreateTask(ctx context.Context, caller domain.Caller, input CreateTaskInput) (*domain.Task, error) {
	if d := policy.Decide(caller, policy.ActionCreateTask, 0); !d.Allowed {
		return nil, apperrors.New(apperrors.CodeForbidden, "not allowed to create tasks")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "title is required")
	}
	status := domain.TaskStatus(strings.TrimSpace(input.Status))
	if status == "" {
		status = domain.TaskStatusPending
	}

	task := &domain.Task{
		Title:       title,
		Description: input.Description,
		Status:      status,
		OwnerID:     caller.UserID,
	}
	if _, err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"op":        "task.create",
		"caller_id": caller.UserID,
		"task_id":   task.ID,
	}).Info("task created")
	return task, nil
}

// GetTask, UpdateTask and DeleteTask pass the caller as the policy owner, so
// the policy check only rejects unauthenticated callers. Ownership is enforced
// by the store statement, scoped to caller.UserID; a foreign task is NotFound.

func (s *taskService) GetTask(ctx context.Context, caller domain.Caller, id int64) (*domain.Task, error) {
	if d := policy.Decide(caller, policy.ActionReadOwnTasks, caller.UserID); !d.Allowed {
		return nil, apperrors.New(apperrors.CodeForbidden, "not allowed to read tasks")
	}
	return s.tasks.Get(ctx, id, caller.UserID)
}

func (s *taskService) ListTasks(ctx context.Context, caller domain.Caller) ([]domain.Task, error) {
	if caller.UserID <= 0 {
		return nil, apperrors.New(apperrors.CodeForbidden, "not allowed to read tasks")
	}
	filter := policy.TaskListScope(caller)
	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"op":        "task.list",
		"caller_id": caller.UserID,
		"role":      caller.Role,
		"all":       filter.All,
		"count":     len(tasks),
	}).Debug("tasks listed")
	return tasks, nil
}

func (s *taskService) ListOwnTasks(ctx context.Context, caller domain.Caller) ([]domain.Task, error) {
	if d := policy.Decide(caller, policy.ActionReadOwnTasks, caller.UserID); !d.Allowed {
		return nil, apperrors.New(apperrors.CodeForbidden, "not allowed to read tasks")
	}
	return s.tasks.List(ctx, domain.TaskFilter{OwnerID: caller.UserID})
}

func (s *taskService) UpdateTask(ctx context.Context, caller domain.Caller, id int64, input UpdateTaskInput) (*domain.Task, error) {
	if d := policy.Decide(caller, policy.ActionUpdateTask, caller.UserID); !d.Allowed {
		return nil, apperrors.New(apperrors.CodeForbidden, "not allowed to update tasks")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "title is required")
	}
	update := domain.TaskUpdate{
		Title:       title,
		Description: input.Description,
	}
	if input.Status != nil {
		status := domain.TaskStatus(strings.TrimSpace(*input.Status))
		if status == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "status must not be empty")
		}
		update.Status = &status
	}

	task, err := s.tasks.Update(ctx, id, caller.UserID, update)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"op":        "task.update",
		"caller_id": caller.UserID,
		"task_id":   id,
	}).Info("task updated")
	return task, nil
}

func (s *taskService) DeleteTask(ctx context.Context, caller domain.Caller, id int64) error {
	if d := policy.Decide(caller, policy.ActionDeleteTask, caller.UserID); !d.Allowed {
		return apperrors.New(apperrors.CodeForbidden, "not allowed to delete tasks")
	}
	if err := s.tasks.Delete(ctx, id, caller.UserID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"op":        "task.delete",
		"caller_id": caller.UserID,
		"task_id":   id,
	}).Info("task deleted")
	return nil
}
