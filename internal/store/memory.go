package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// entry - значение ключа: либо строка, либо хэш. Нулевой ExpiresAt - без срока жизни.
type entry struct {
	Value     string            `json:"value,omitempty"`
	Hash      map[string]string `json:"hash,omitempty"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// MemoryStore хранит данные в памяти процесса. Время берётся из clock,
// поэтому истечение TTL легко проверять в тестах.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]entry
	clock func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore создаёт пустое хранилище. clock == nil означает time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		data:  make(map[string]entry),
		clock: clock,
	}
}

// lookup возвращает живое значение; просроченное удаляется. Вызывается под mu.
func (s *MemoryStore) lookup(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(s.clock()) {
		delete(s.data, key)
		return entry{}, false
	}
	return e, true
}

// SetNX реализует Store.
func (s *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(key); ok {
		return false, nil
	}

	e := entry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = s.clock().Add(ttl)
	}
	s.data[key] = e
	return true, nil
}

// Get реализует Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	if e.Hash != nil {
		return "", false, errors.Wrapf(ErrWrongType, "get %s", key)
	}
	return e.Value, true, nil
}

// Set реализует Store. Как и SET в Redis, сбрасывает TTL.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = entry{Value: value}
	return nil
}

// HGetAll реализует Store.
func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return map[string]string{}, nil
	}
	if e.Hash == nil {
		return nil, errors.Wrapf(ErrWrongType, "hgetall %s", key)
	}

	res := make(map[string]string, len(e.Hash))
	for field, value := range e.Hash {
		res[field] = value
	}
	return res, nil
}

// HSet реализует Store.
func (s *MemoryStore) HSet(ctx context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if ok && e.Hash == nil {
		return errors.Wrapf(ErrWrongType, "hset %s", key)
	}
	if !ok {
		e = entry{Hash: make(map[string]string)}
	}
	e.Hash[field] = value
	s.data[key] = e
	return nil
}

// Incr реализует Store.
func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if ok && e.Hash != nil {
		return 0, errors.Wrapf(ErrWrongType, "incr %s", key)
	}

	var n int64
	if ok {
		parsed, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			return 0, errors.Newf("incr %s: value is not an integer", key)
		}
		n = parsed
	}
	n++
	e.Value = strconv.FormatInt(n, 10)
	s.data[key] = e
	return n, nil
}

// Ping реализует Store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close реализует Store.
func (s *MemoryStore) Close() error { return nil }

// export копирует живые записи (для FileStore).
func (s *MemoryStore) export() map[string]entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	res := make(map[string]entry, len(s.data))
	for key, e := range s.data {
		if e.expired(now) {
			continue
		}
		res[key] = e
	}
	return res
}

// restore заменяет содержимое хранилища.
func (s *MemoryStore) restore(data map[string]entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data == nil {
		data = make(map[string]entry)
	}
	s.data = data
}
