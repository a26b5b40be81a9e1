package domain

import "time"

// TaskStatus is free-form; the constants are the values clients commonly use.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID          int64
	Title       string
	Description string
	Status      TaskStatus
	OwnerID     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskUpdate carries replacement values for a task. Title is always applied;
// nil Description or Status keep the stored value.
type TaskUpdate struct {
	Title       string
	Description *string
	Status      *TaskStatus
}

// TaskFilter selects which tasks a listing returns.
type TaskFilter struct {
	OwnerID int64
	All     bool
}
