package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskhub/internal/domain"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/policy"
	"taskhub/internal/repository"
	"taskhub/internal/storage"
)

// ErrExportsDisabled is returned when no export bucket is configured.
var ErrExportsDisabled = apperrors.New(apperrors.CodeUnavailable, "task export is not configured")

// Export describes an uploaded snapshot of a user's tasks.
type Export struct {
	Key       string
	Location  string
	URL       string
	Count     int
	ExpiresAt time.Time
}

// ExportService snapshots a caller's own tasks into object storage.
type ExportService interface {
	Enabled() bool
	ExportTasks(ctx context.Context, caller domain.Caller) (*Export, error)
	ListExports(ctx context.Context, caller domain.Caller) ([]storage.ObjectInfo, error)
	PurgeUser(ctx context.Context, userID int64) error
}

type ExportConfig struct {
	Bucket    string
	KeyPrefix string
	URLExpiry time.Duration
	Now       func() time.Time
	NewID     func() string
	Logger    *logrus.Logger
}

type exportService struct {
	cfg     ExportConfig
	tasks   repository.TaskRepository
	storage storage.Service
}

func NewExportService(cfg ExportConfig, tasks repository.TaskRepository, store storage.Service) ExportService {
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.KeyPrefix = strings.Trim(strings.TrimSpace(cfg.KeyPrefix), "/")
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &exportService{
		cfg:     cfg,
		tasks:   tasks,
		storage: store,
	}
}

func (s *exportService) Enabled() bool {
	return s.storage != nil && s.cfg.Bucket != ""
}

type exportDocument struct {
	UserID     int64          `json:"user_id"`
	Username   string         `json:"username"`
	ExportedAt string         `json:"exported_at"`
	Tasks      []exportedTask `json:"tasks"`
}

type exportedTask struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ExportTasks always exports the caller's own tasks, admins included.
func (s *exportService) ExportTasks(ctx context.Context, caller domain.Caller) (*Export, error) {
	if !s.Enabled() {
		return nil, ErrExportsDisabled
	}
	if d := policy.Decide(caller, policy.ActionExportTasks, caller.UserID); !d.Allowed {
		return nil, apperrors.New(apperrors.CodeForbidden, "not allowed to export tasks")
	}

	tasks, err := s.tasks.List(ctx, domain.TaskFilter{OwnerID: caller.UserID})
	if err != nil {
		return nil, err
	}

	now := s.cfg.Now().UTC()
	doc := exportDocument{
		UserID:     caller.UserID,
		Username:   caller.Username,
		ExportedAt: now.Format(time.RFC3339),
		Tasks:      make([]exportedTask, len(tasks)),
	}
	for i, task := range tasks {
		doc.Tasks[i] = exportedTask{
			ID:          task.ID,
			Title:       task.Title,
			Description: task.Description,
			Status:      string(task.Status),
			CreatedAt:   task.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:   task.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := fmt.Sprintf("%s%s-%s.json", s.userPrefix(caller.UserID), now.Format("20060102T150405Z"), s.cfg.NewID())
	location, err := s.storage.PutObject(ctx, bytes.NewReader(body), storage.PutOptions{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		ContentType: "application/json",
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "export failed", err)
	}
	url, err := s.storage.GetObjectURL(ctx, s.cfg.Bucket, key, s.cfg.URLExpiry)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "export failed", err)
	}

	s.cfg.Logger.WithFields(logrus.Fields{
		"op":        "task.export",
		"caller_id": caller.UserID,
		"count":     len(tasks),
		"location":  location,
	}).Info("tasks exported")

	return &Export{
		Key:       key,
		Location:  location,
		URL:       url,
		Count:     len(tasks),
		ExpiresAt: now.Add(s.cfg.URLExpiry),
	}, nil
}

func (s *exportService) ListExports(ctx context.Context, caller domain.Caller) ([]storage.ObjectInfo, error) {
	if !s.Enabled() {
		return nil, ErrExportsDisabled
	}
	if d := policy.Decide(caller, policy.ActionExportTasks, caller.UserID); !d.Allowed {
		return nil, apperrors.New(apperrors.CodeForbidden, "not allowed to list exports")
	}
	objects, err := s.storage.ListObjects(ctx, s.cfg.Bucket, s.userPrefix(caller.UserID))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "list exports failed", err)
	}
	return objects, nil
}

func (s *exportService) PurgeUser(ctx context.Context, userID int64) error {
	if !s.Enabled() {
		return nil
	}
	return s.storage.DeletePrefix(ctx, s.cfg.Bucket, s.userPrefix(userID))
}

// userPrefix ends in a slash so user 1 never matches user 10's objects.
func (s *exportService) userPrefix(userID int64) string {
	if s.cfg.KeyPrefix == "" {
		return fmt.Sprintf("users/%d/", userID)
	}
	return fmt.Sprintf("%s/users/%d/", s.cfg.KeyPrefix, userID)
}
