package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskhub/internal/domain"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/repository"
)

const (
	createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	owner_id INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY(owner_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_id ON tasks(owner_id);
`

	taskColumns = `id, title, description, status, owner_id, created_at, updated_at`
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTasksTable); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (int64, error) {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO tasks (title, description, status, owner_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		task.Title,
		task.Description,
		string(task.Status),
		task.OwnerID,
		toMillis(task.CreatedAt),
		toMillis(task.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, apperrors.Wrap(apperrors.CodeNotFound, "user not found", err)
		}
		return 0, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	task.ID = id
	return id, nil
}

func (r *TaskRepository) Get(ctx context.Context, id, ownerID int64) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE id=? AND owner_id=?`,
		id,
		ownerID,
	)
	return scanTask(row)
}

func (r *TaskRepository) List(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if !filter.All {
		where = append(where, "owner_id=?")
		args = append(args, filter.OwnerID)
	}

	query := `
SELECT ` + taskColumns + `
FROM tasks`
	if len(where) > 0 {
		query += `
WHERE ` + strings.Join(where, " AND ")
	}
	query += `
ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

// Update rewrites a task only when id and owner both match; COALESCE keeps
// the stored description and status when the update leaves them nil.
func (r *TaskRepository) Update(ctx context.Context, id, ownerID int64, update domain.TaskUpdate) (*domain.Task, error) {
	var description, status any
	if update.Description != nil {
		description = *update.Description
	}
	if update.Status != nil {
		status = string(*update.Status)
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE tasks
SET title=?, description=COALESCE(?, description), status=COALESCE(?, status), updated_at=?
WHERE id=? AND owner_id=?
RETURNING `+taskColumns,
		update.Title,
		description,
		status,
		toMillis(time.Now()),
		id,
		ownerID,
	)
	return scanTask(row)
}

func (r *TaskRepository) Delete(ctx context.Context, id, ownerID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("task delete rows affected: %w", err)
	}
	if aff == 0 {
		return apperrors.New(apperrors.CodeNotFound, "task not found")
	}
	return nil
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*domain.Task, error) {
	var (
		task      domain.Task
		status    string
		createdAt int64
		updatedAt int64
	)

	if err := scanner.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&task.OwnerID,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeNotFound, "task not found")
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)
	return &task, nil
}
