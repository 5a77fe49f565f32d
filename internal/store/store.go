package store

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/maine/hn_keyword_bot/internal/config"
)

// ErrWrongType возвращается, когда операция не соответствует типу значения по ключу.
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

// Store - key-value хранилище, которое нужно боту: строки, хэши, счётчики
// и условная запись с TTL (основа дедупликации).
type Store interface {
	// SetNX атомарно создаёт ключ, если его ещё нет. true - ключ создан.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get возвращает значение и признак его наличия.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key, field, value string) error
	Incr(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open создаёт хранилище по конфигурации и проверяет соединение.
func Open(ctx context.Context, cfg config.Storage, clock func() time.Time) (Store, error) {
	var (
		s   Store
		err error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("redis backend requires REDIS_URL")
		}
		s, err = NewRedisStore(cfg.RedisURL)
	case config.BackendFile:
		s, err = NewFileStore(cfg.Path, clock)
	case config.BackendMemory:
		s = NewMemoryStore(clock)
	default:
		return nil, errors.Newf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "ping storage")
	}
	return s, nil
}
