package service

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"taskhub/internal/auth"
	"taskhub/internal/domain"
	"taskhub/internal/repository"
	"taskhub/internal/repository/sqlite"
	"taskhub/internal/storage"
)

type testEnv struct {
	users   repository.UserRepository
	tasks   repository.TaskRepository
	store   *memStorage
	userSvc UserService
	taskSvc TaskService
	export  ExportService
}

func newTestEnv(t *testing.T, adminSecret string) testEnv {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "taskhub.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	tasks := sqlite.NewTaskRepository(db)
	if err := users.Init(ctx); err != nil {
		t.Fatalf("init users: %v", err)
	}
	if err := tasks.Init(ctx); err != nil {
		t.Fatalf("init tasks: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := newMemStorage()
	exports := NewExportService(ExportConfig{
		Bucket:    "exports",
		KeyPrefix: "taskhub",
		Now:       func() time.Time { return time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC) },
		Logger:    logger,
	}, tasks, store)

	return testEnv{
		users: users,
		tasks: tasks,
		store: store,
		userSvc: NewUserService(users, UserConfig{
			Hasher:      auth.NewPasswordHasher(auth.MinPasswordCost),
			AdminSecret: adminSecret,
			Exports:     exports,
			Logger:      logger,
		}),
		taskSvc: NewTaskService(tasks, logger),
		export:  exports,
	}
}

func (e testEnv) register(t *testing.T, username string, role domain.Role, secret string) domain.Caller {
	t.Helper()
	user, err := e.userSvc.Register(context.Background(), RegisterInput{
		Username:    username,
		Password:    "pw-" + username,
		Role:        string(role),
		AdminSecret: secret,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return domain.Caller{UserID: user.ID, Username: user.Username, Role: user.Role}
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) PutObject(_ context.Context, body io.Reader, opts storage.PutOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[opts.Bucket+"/"+opts.Key] = data
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (m *memStorage) ListObjects(_ context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	objects := []storage.ObjectInfo{}
	for full, data := range m.objects {
		key := strings.TrimPrefix(full, bucket+"/")
		if key == full || !strings.HasPrefix(key, prefix) {
			continue
		}
		objects = append(objects, storage.ObjectInfo{Key: key, Size: int64(len(data))})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *memStorage) DeletePrefix(_ context.Context, bucket, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for full := range m.objects {
		if strings.HasPrefix(full, bucket+"/"+prefix) {
			delete(m.objects, full)
		}
	}
	return nil
}

func (m *memStorage) GetObjectURL(_ context.Context, bucket, key string, expires time.Duration) (string, error) {
	return "https://storage.test/" + bucket + "/" + key + "?expires=" + expires.String(), nil
}

func (m *memStorage) get(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	return bytes.Clone(data), ok
}
