package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
)

// lockRetryDelay - пауза между попытками взять файловую блокировку.
const lockRetryDelay = 5 * time.Millisecond

// FileStore хранит данные в JSON-файле. Каждая операция берёт блокировку
// <path>.lock и перечитывает файл, поэтому несколько процессов на одной
// машине видят одно состояние, а условная запись остаётся атомарной.
type FileStore struct {
	mu    sync.Mutex
	path  string
	clock func() time.Time
	lock  *flock.Flock
}

var _ Store = (*FileStore)(nil)

// NewFileStore открывает файловый стор и проверяет, что файл читается.
func NewFileStore(path string, clock func() time.Time) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file backend requires storage.path")
	}
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create state directory")
	}

	s := &FileStore{
		path:  path,
		clock: clock,
		lock:  flock.New(path + ".lock"),
	}
	if err := s.view(context.Background(), func(*MemoryStore) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

// view выполняет fn над актуальным состоянием под разделяемой блокировкой.
func (s *FileStore) view(ctx context.Context, fn func(mem *MemoryStore) error) error {
	return s.locked(ctx, false, fn)
}

// update выполняет fn под эксклюзивной блокировкой и сохраняет результат.
func (s *FileStore) update(ctx context.Context, fn func(mem *MemoryStore) error) error {
	return s.locked(ctx, true, fn)
}

func (s *FileStore) locked(ctx context.Context, write bool, fn func(mem *MemoryStore) error) error {
	// flock не различает блокировки одного процесса, поэтому горутины упорядочиваем сами
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ok  bool
		err error
	)
	if write {
		ok, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return errors.Wrap(err, "lock state file")
	}
	if !ok {
		return errors.New("lock state file: not acquired")
	}
	defer func() { _ = s.lock.Unlock() }()

	mem, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(mem); err != nil {
		return err
	}
	if !write {
		return nil
	}
	return s.save(mem)
}

func (s *FileStore) load() (*MemoryStore, error) {
	mem := NewMemoryStore(s.clock)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return mem, nil
		}
		return nil, errors.Wrap(err, "read state file")
	}

	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Повреждённый файл сохраняем рядом для диагностики и стартуем с пустым состоянием
		_ = os.WriteFile(s.path+".broken", data, 0644)
		return mem, nil
	}

	mem.restore(entries)
	return mem, nil
}

// save записывает состояние атомарно (через временный файл). Вызывается под блокировкой.
func (s *FileStore) save(mem *MemoryStore) error {
	data, err := json.MarshalIndent(mem.export(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(err, "create state directory")
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrap(err, "write temp state file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "rename temp state file")
	}
	return nil
}

// SetNX реализует Store.
func (s *FileStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	var created bool
	err := s.update(ctx, func(mem *MemoryStore) error {
		var err error
		created, err = mem.SetNX(ctx, key, value, ttl)
		return err
	})
	return created, err
}

// Get реализует Store.
func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.view(ctx, func(mem *MemoryStore) error {
		var err error
		value, ok, err = mem.Get(ctx, key)
		return err
	})
	return value, ok, err
}

// Set реализует Store.
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.update(ctx, func(mem *MemoryStore) error {
		return mem.Set(ctx, key, value)
	})
}

// HGetAll реализует Store.
func (s *FileStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var hash map[string]string
	err := s.view(ctx, func(mem *MemoryStore) error {
		var err error
		hash, err = mem.HGetAll(ctx, key)
		return err
	})
	return hash, err
}

// HSet реализует Store.
func (s *FileStore) HSet(ctx context.Context, key, field, value string) error {
	return s.update(ctx, func(mem *MemoryStore) error {
		return mem.HSet(ctx, key, field, value)
	})
}

// Incr реализует Store.
func (s *FileStore) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.update(ctx, func(mem *MemoryStore) error {
		var err error
		n, err = mem.Incr(ctx, key)
		return err
	})
	return n, err
}

// Ping реализует Store.
func (s *FileStore) Ping(ctx context.Context) error {
	return s.view(ctx, func(*MemoryStore) error { return nil })
}

// Close реализует Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Close()
}
