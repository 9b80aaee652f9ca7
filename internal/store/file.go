package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/log"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// DefaultFileStorePath is used when no path is configured.
const DefaultFileStorePath = ".jacinta/tasks"

// FileStore keeps one JSON document per task in a directory. Writes go to a
// temporary file that is synced and renamed over the target, so a reader
// always sees either the previous or the next complete record.
//
// Claim is serialized by an in-process mutex; a FileStore directory must not
// be shared by several runner processes.
//
// A record that cannot be read or decoded is logged and left out of List, so
// one damaged file does not hide every other task.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *log.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultFileStorePath
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create task directory", err)
	}
	return &FileStore{dir: dir, logger: log.DefaultLogger()}, nil
}

// SetLogger replaces the logger used to report unreadable records.
func (s *FileStore) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.Nop()
	}
	s.logger = l
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func validID(id string) bool {
	return id != "" && filepath.Base(id) == id && !strings.HasPrefix(id, ".")
}

func (s *FileStore) List(ctx context.Context, status task.Status) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*task.Task{}, nil
		}
		return nil, errors.NewStoreError("list", err)
	}

	out := make([]*task.Task, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		t, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.WithError(err).Warn("skipping unreadable task record", "file", filepath.Join(s.dir, name))
			continue
		}
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *FileStore) Create(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return errors.NewTaskInvalidError(err.Error())
	}
	if !validID(t.ID) {
		return errors.NewTaskInvalidError(fmt.Sprintf("invalid task id %q", t.ID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(t.ID)); err == nil {
		return errors.NewTaskInvalidError(fmt.Sprintf("task %s already exists", t.ID))
	}
	return s.write(t)
}

func (s *FileStore) Save(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validID(t.ID) {
		return notFound(t.ID)
	}
	if _, err := os.Stat(s.path(t.ID)); err != nil {
		if os.IsNotExist(err) {
			return notFound(t.ID)
		}
		return errors.NewStoreError("save", err)
	}
	return s.write(t)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validID(id) {
		return notFound(id)
	}
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return notFound(id)
		}
		return errors.NewStoreError("delete", err)
	}
	return nil
}

func (s *FileStore) Claim(ctx context.Context, id, owner string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusPending {
		return nil, alreadyClaimed(id, t.Status)
	}

	now := time.Now().UTC()
	t.Status = task.StatusCurrent
	t.ClaimedBy = owner
	t.ClaimedAt = &now
	t.UpdatedAt = now
	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(id string) (*task.Task, error) {
	if !validID(id) {
		return nil, notFound(id)
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, errors.NewStoreError("read", err)
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.NewFileUnmarshalError(s.path(id), "JSON", err)
	}
	if t.Jobs == nil {
		t.Jobs = []task.Job{}
	}
	return &t, nil
}

func (s *FileStore) write(t *task.Task) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.NewStoreError("encode", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+t.ID+".*.tmp")
	if err != nil {
		return errors.NewStoreError("write", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.NewStoreError("write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.NewStoreError("sync", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.NewStoreError("write", err)
	}
	if err := os.Rename(tmpName, s.path(t.ID)); err != nil {
		cleanup()
		return errors.NewStoreError("rename", err)
	}
	return nil
}
