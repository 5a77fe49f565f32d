package app

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// CheckpointKey - ключ последней обработанной записи.
const CheckpointKey = "lastCheckedId"

// KV - то, что нужно от хранилища для контрольной точки.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type checkpointStore struct {
	kv     KV
	feed   Feed
	logger *zap.SugaredLogger
}

// load читает контрольную точку. Если её нет (первый запуск, ноль или мусор),
// стартуем с самой свежей записи ленты без догрузки истории; persist=true
// сохраняет это значение, чтобы следующий запуск продолжил с него.
func (c *checkpointStore) load(ctx context.Context, persist bool) (int64, error) {
	value, ok, err := c.kv.Get(ctx, CheckpointKey)
	if err != nil {
		return 0, markStorage(err)
	}
	if ok {
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err == nil && id > 0 {
			return id, nil
		}
		c.logger.Warnw("invalid checkpoint, starting from the latest item", "value", value)
	}

	latest, err := c.feed.LatestID(ctx)
	if err != nil {
		return 0, markFetch(err)
	}
	c.logger.Infow("no checkpoint, starting from the latest item", "latest_id", latest)
	if persist {
		if err := c.save(ctx, latest); err != nil {
			return 0, err
		}
	}
	return latest, nil
}

func (c *checkpointStore) save(ctx context.Context, id int64) error {
	if err := c.kv.Set(ctx, CheckpointKey, strconv.FormatInt(id, 10)); err != nil {
		return markStorage(err)
	}
	return nil
}
