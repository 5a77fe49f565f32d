// Package dedup содержит два независимых маркера идемпотентности:
// защиту от параллельного запуска и отметку уже обработанных записей.
// Оба - одна атомарная условная запись с TTL, никакого «прочитать, потом записать».
package dedup

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// RunLockKey - общий ключ запуска (имя унаследовано от первой версии бота).
	RunLockKey = "dedupIndex"
	// DefaultRunTTL покрывает зазор между двумя почти одновременными срабатываниями cron.
	DefaultRunTTL = 5 * time.Second
	// DefaultItemTTL - окно, в котором запись может быть повторно получена.
	DefaultItemTTL = 24 * time.Hour

	itemKeyPrefix = "post_"
)

// ConditionalSetter - условная запись с TTL (store.Store её реализует).
type ConditionalSetter interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// RunGuard отсекает дублирующиеся запуски.
type RunGuard struct {
	store ConditionalSetter
	ttl   time.Duration
}

// NewRunGuard создаёт защиту запуска. ttl <= 0 означает DefaultRunTTL.
func NewRunGuard(store ConditionalSetter, ttl time.Duration) *RunGuard {
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	return &RunGuard{store: store, ttl: ttl}
}

// Acquire возвращает true, если этот запуск первый в окне TTL.
// runID сохраняется значением ключа для диагностики.
func (g *RunGuard) Acquire(ctx context.Context, runID string) (bool, error) {
	if runID == "" {
		runID = "set"
	}
	ok, err := g.store.SetNX(ctx, RunLockKey, runID, g.ttl)
	if err != nil {
		return false, errors.Wrap(err, "acquire run lock")
	}
	return ok, nil
}

// ItemGuard помечает записи как обработанные.
type ItemGuard struct {
	store ConditionalSetter
	ttl   time.Duration
}

// NewItemGuard создаёт защиту записей. ttl <= 0 означает DefaultItemTTL.
func NewItemGuard(store ConditionalSetter, ttl time.Duration) *ItemGuard {
	if ttl <= 0 {
		ttl = DefaultItemTTL
	}
	return &ItemGuard{store: store, ttl: ttl}
}

// MarkIfUnseen возвращает true, если запись встречается впервые (и помечает её).
func (g *ItemGuard) MarkIfUnseen(ctx context.Context, itemID int64) (bool, error) {
	ok, err := g.store.SetNX(ctx, ItemKey(itemID), "true", g.ttl)
	if err != nil {
		return false, errors.Wrapf(err, "mark item %d", itemID)
	}
	return ok, nil
}

// ItemKey - ключ маркера записи.
func ItemKey(itemID int64) string {
	return itemKeyPrefix + strconv.FormatInt(itemID, 10)
}
