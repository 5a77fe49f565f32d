// Package app связывает ленту, подписки, защиту от дублей и доставку в один запуск.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maine/hn_keyword_bot/internal/matcher"
	"github.com/maine/hn_keyword_bot/internal/news"
	"github.com/maine/hn_keyword_bot/internal/notify"
)

var (
	// ErrNotConfigured возвращается, когда оркестратор запущен без обязательных зависимостей.
	ErrNotConfigured = errors.New("orchestrator dependencies not configured")
	// ErrDuplicateRun - другой запуск уже идёт; это сигнал, а не сбой.
	ErrDuplicateRun = errors.New("duplicate run")
	// ErrFetch - источник недоступен или ответил мусором.
	ErrFetch = errors.New("fetch failed")
	// ErrStorage - хранилище недоступно; без него дедупликация не гарантируется.
	ErrStorage = errors.New("storage failed")
)

// Clock определяет источник времени (удобно подменять в тестах).
type Clock func() time.Time

// Feed отдаёт новые записи ленты.
type Feed interface {
	LatestID(ctx context.Context) (int64, error)
	ItemsSince(ctx context.Context, since int64) ([]news.Item, error)
}

// Subscriptions - индекс подписок команд.
type Subscriptions interface {
	LoadAll(ctx context.Context) (news.Snapshot, error)
	Destination(ctx context.Context, team string) (news.Destination, bool, error)
	TrackNotification(ctx context.Context, team string) (int64, error)
}

// RunLock отсекает параллельные запуски.
type RunLock interface {
	Acquire(ctx context.Context, runID string) (bool, error)
}

// SeenMarker помечает обработанные записи.
type SeenMarker interface {
	MarkIfUnseen(ctx context.Context, itemID int64) (bool, error)
}

// Summarizer пересказывает запись для уведомления.
type Summarizer interface {
	Summarize(ctx context.Context, item news.Item) (string, error)
}

// Deps перечисляет зависимости оркестратора.
type Deps struct {
	Feed          Feed
	Subscriptions Subscriptions
	RunLock       RunLock
	Seen          SeenMarker
	Checkpoints   KV
	Dispatcher    notify.Dispatcher
	Summarizer    Summarizer // опционально
	// MirrorWebhook - Discord-вебхук, куда уходит ссылка на каждую совпавшую запись.
	MirrorWebhook string
	Concurrency   int
	SnippetLength int
	Clock         Clock
	NewRunID      func() string
	Logger        *zap.SugaredLogger
}

// Orchestrator выполняет один запуск: лента → классификация → дедупликация → доставка.
type Orchestrator struct {
	feed          Feed
	subscriptions Subscriptions
	runLock       RunLock
	seen          SeenMarker
	checkpoints   *checkpointStore
	dispatcher    notify.Dispatcher
	summarizer    Summarizer
	mirror        news.Destination
	concurrency   int
	snippetLength int
	clock         Clock
	newRunID      func() string
	logger        *zap.SugaredLogger
}

// New создаёт оркестратор.
func New(deps Deps) *Orchestrator {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	o := &Orchestrator{
		feed:          deps.Feed,
		subscriptions: deps.Subscriptions,
		runLock:       deps.RunLock,
		seen:          deps.Seen,
		dispatcher:    deps.Dispatcher,
		summarizer:    deps.Summarizer,
		concurrency:   concurrency,
		snippetLength: deps.SnippetLength,
		clock:         clock,
		newRunID:      newRunID,
		logger:        logger,
	}
	if deps.Checkpoints != nil {
		o.checkpoints = &checkpointStore{kv: deps.Checkpoints, feed: deps.Feed, logger: logger}
	}
	if deps.MirrorWebhook != "" {
		o.mirror = news.Destination{Kind: "discord", Target: deps.MirrorWebhook}
	}
	return o
}

// Run исполняет один запуск.
func (o *Orchestrator) Run(ctx context.Context) (news.RunSummary, error) {
	if err := o.validateDeps(); err != nil {
		return news.RunSummary{}, err
	}

	start := o.clock()
	summary := news.RunSummary{RunID: o.newRunID()}
	logger := o.logger.With("run_id", summary.RunID)

	acquired, err := o.runLock.Acquire(ctx, summary.RunID)
	if err != nil {
		return summary, markStorage(err)
	}
	if !acquired {
		logger.Infow("run skipped, another run is in flight")
		return summary, ErrDuplicateRun
	}

	checkpoint, err := o.checkpoints.load(ctx, true)
	if err != nil {
		return summary, err
	}
	summary.StartCheckpoint = checkpoint
	summary.Checkpoint = checkpoint

	items, err := o.feed.ItemsSince(ctx, checkpoint)
	if err != nil {
		return summary, markFetch(err)
	}
	summary.ItemsFetched = len(items)
	if len(items) == 0 {
		summary.Duration = o.clock().Sub(start)
		logger.Infow("no new items", "checkpoint", checkpoint)
		return summary, nil
	}

	snapshot, err := o.subscriptions.LoadAll(ctx)
	if err != nil {
		return summary, markStorage(err)
	}
	m := matcher.Compile(snapshot)
	logger.Debugw("matcher compiled", "teams", len(snapshot), "keywords", m.Len())

	r := &run{
		Orchestrator: o,
		logger:       logger,
		matcher:      m,
		destinations: map[string]*news.Destination{},
		summary:      &summary,
	}

	highest := checkpoint
	for _, item := range items {
		if err := r.process(ctx, item); err != nil {
			return summary, err
		}
		if item.ID > highest {
			highest = item.ID
		}
	}

	if highest > checkpoint {
		if err := o.checkpoints.save(ctx, highest); err != nil {
			return summary, err
		}
		summary.Checkpoint = highest
	}

	summary.Duration = o.clock().Sub(start)
	logger.Infow("run complete",
		"start_checkpoint", summary.StartCheckpoint,
		"checkpoint", summary.Checkpoint,
		"items_fetched", summary.ItemsFetched,
		"items_matched", summary.ItemsMatched,
		"items_already_seen", summary.ItemsAlreadySeen,
		"notifications_sent", summary.NotificationsSent,
		"dispatch_failures", summary.DispatchFailures,
		"duration", summary.Duration,
	)
	return summary, nil
}

// Preview классифицирует записи после текущей контрольной точки без побочных
// эффектов: без блокировки, маркеров, отправки и записи контрольной точки.
func (o *Orchestrator) Preview(ctx context.Context) ([]news.ItemMatch, error) {
	if o.feed == nil || o.subscriptions == nil || o.checkpoints == nil {
		return nil, ErrNotConfigured
	}

	checkpoint, err := o.checkpoints.load(ctx, false)
	if err != nil {
		return nil, err
	}
	items, err := o.feed.ItemsSince(ctx, checkpoint)
	if err != nil {
		return nil, markFetch(err)
	}
	snapshot, err := o.subscriptions.LoadAll(ctx)
	if err != nil {
		return nil, markStorage(err)
	}

	m := matcher.Compile(snapshot)
	matches := make([]news.ItemMatch, 0)
	for _, item := range items {
		res := m.Match(item)
		if len(res.Teams) == 0 {
			continue
		}
		matches = append(matches, news.ItemMatch{Item: item, Teams: res.Teams})
	}
	return matches, nil
}

func (o *Orchestrator) validateDeps() error {
	// summarizer опционален
	switch {
	case o.feed == nil,
		o.subscriptions == nil,
		o.runLock == nil,
		o.seen == nil,
		o.checkpoints == nil,
		o.dispatcher == nil:
		return ErrNotConfigured
	default:
		return nil
	}
}

// run - состояние одного запуска.
type run struct {
	*Orchestrator
	logger  *zap.SugaredLogger
	matcher *matcher.Matcher
	// destinations кэширует адреса команд на время запуска; nil - канал не настроен.
	destinations map[string]*news.Destination

	mu      sync.Mutex
	summary *news.RunSummary
}

type delivery struct {
	team string
	dest news.Destination
}

func (r *run) process(ctx context.Context, item news.Item) error {
	res := r.matcher.Match(item)
	logger := r.logger.With("item_id", item.ID)

	deliveries, err := r.resolve(ctx, res.SortedTeams())
	if err != nil {
		return err
	}

	unseen, err := r.seen.MarkIfUnseen(ctx, item.ID)
	if err != nil {
		return markStorage(err)
	}
	if !unseen {
		r.summary.ItemsAlreadySeen++
		logger.Debugw("item already seen")
		return nil
	}
	if len(res.Teams) == 0 {
		return nil
	}
	r.summary.ItemsMatched++
	logger.Infow("item matched", "teams", res.SortedTeams())

	summaryText := r.summarize(ctx, item)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, d := range deliveries {
		g.Go(func() error {
			msg := notify.Render(item, res.Teams[d.team], summaryText, r.snippetLength)
			if err := r.dispatcher.Dispatch(gctx, d.dest, msg); err != nil {
				logger.Warnw("dispatch failed", "team", d.team, "kind", d.dest.Kind, "error", err)
				r.count(func(s *news.RunSummary) { s.DispatchFailures++ })
				return nil
			}
			r.count(func(s *news.RunSummary) { s.NotificationsSent++ })
			if _, err := r.subscriptions.TrackNotification(gctx, d.team); err != nil {
				logger.Warnw("track notification failed", "team", d.team, "error", err)
			}
			return nil
		})
	}
	if r.mirror.Target != "" {
		g.Go(func() error {
			if err := r.dispatcher.Dispatch(gctx, r.mirror, notify.MirrorMessage(item)); err != nil {
				logger.Warnw("mirror dispatch failed", "error", err)
				r.count(func(s *news.RunSummary) { s.DispatchFailures++ })
			}
			return nil
		})
	}
	// горутины не возвращают ошибок: сбой одного адресата не влияет на остальных
	_ = g.Wait()
	return nil
}

// resolve возвращает адреса команд; команды без канала пропускаются.
func (r *run) resolve(ctx context.Context, teams []string) ([]delivery, error) {
	deliveries := make([]delivery, 0, len(teams))
	for _, team := range teams {
		dest, cached := r.destinations[team]
		if !cached {
			resolved, ok, err := r.subscriptions.Destination(ctx, team)
			if err != nil {
				return nil, markStorage(err)
			}
			if ok {
				dest = &resolved
			} else {
				r.logger.Warnw("team has no channel configured", "team", team)
			}
			r.destinations[team] = dest
		}
		if dest != nil {
			deliveries = append(deliveries, delivery{team: team, dest: *dest})
		}
	}
	return deliveries, nil
}

func (r *run) summarize(ctx context.Context, item news.Item) string {
	if r.summarizer == nil {
		return ""
	}
	text, err := r.summarizer.Summarize(ctx, item)
	if err != nil {
		r.logger.Warnw("summary failed, falling back to item text", "item_id", item.ID, "error", err)
		return ""
	}
	return text
}

func (r *run) count(update func(s *news.RunSummary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(r.summary)
}

func markStorage(err error) error {
	return errors.Mark(err, ErrStorage)
}

func markFetch(err error) error {
	return errors.Mark(err, ErrFetch)
}
