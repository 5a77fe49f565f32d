// Package subscription - источник истины о подписках команд: ключевые слова,
// канал доставки, токен и счётчик уведомлений. Раскладка ключей совместима
// с первой версией бота.
package subscription

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/maine/hn_keyword_bot/internal/news"
	"github.com/maine/hn_keyword_bot/internal/store"
)

const (
	keywordsKey = "keywords"

	channelSuffix       = "_channel"
	tokenSuffix         = "_token"
	notificationsSuffix = "_notifications"

	// KindSlack - вид канала по умолчанию для значения без префикса.
	KindSlack    = "slack"
	KindDiscord  = "discord"
	KindTelegram = "telegram"
)

// Index читает и изменяет подписки в хранилище.
type Index struct {
	store       store.Store
	globalToken string
	logger      *zap.SugaredLogger
}

// NewIndex создаёт индекс. globalToken, если задан, заменяет токены команд
// (self-hosted установка с одним рабочим пространством).
func NewIndex(s store.Store, globalToken string, logger *zap.SugaredLogger) *Index {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Index{store: s, globalToken: globalToken, logger: logger}
}

// LoadAll возвращает снимок всех подписок. Пустой снимок, если подписок нет.
// Команда с повреждённым значением пропускается с предупреждением.
func (x *Index) LoadAll(ctx context.Context) (news.Snapshot, error) {
	raw, err := x.store.HGetAll(ctx, keywordsKey)
	if err != nil {
		return nil, errors.Wrap(err, "load subscriptions")
	}

	snapshot := make(news.Snapshot, len(raw))
	for team, value := range raw {
		keywords, err := decodeKeywords(value)
		if err != nil {
			x.logger.Warnw("skipping team with malformed keywords", "team", team, "error", err)
			continue
		}
		snapshot[team] = keywords
	}
	return snapshot, nil
}

// Keywords возвращает ключевые слова команды.
func (x *Index) Keywords(ctx context.Context, team string) ([]string, error) {
	all, err := x.store.HGetAll(ctx, keywordsKey)
	if err != nil {
		return nil, errors.Wrap(err, "load keywords")
	}
	value, ok := all[team]
	if !ok {
		return []string{}, nil
	}
	return decodeKeywords(value)
}

// AddKeyword добавляет слово. false - слово уже было в списке.
func (x *Index) AddKeyword(ctx context.Context, team, keyword string) (bool, error) {
	if keyword == "" {
		return false, errors.New("keyword is empty")
	}
	keywords, err := x.Keywords(ctx, team)
	if err != nil {
		return false, err
	}
	for _, kw := range keywords {
		if kw == keyword {
			return false, nil
		}
	}
	return true, x.saveKeywords(ctx, team, append(keywords, keyword))
}

// RemoveKeyword удаляет слово. false - слова не было в списке.
func (x *Index) RemoveKeyword(ctx context.Context, team, keyword string) (bool, error) {
	keywords, err := x.Keywords(ctx, team)
	if err != nil {
		return false, err
	}
	for i, kw := range keywords {
		if kw == keyword {
			keywords = append(keywords[:i], keywords[i+1:]...)
			return true, x.saveKeywords(ctx, team, keywords)
		}
	}
	return false, nil
}

// CountKeywords возвращает количество слов команды.
func (x *Index) CountKeywords(ctx context.Context, team string) (int, error) {
	keywords, err := x.Keywords(ctx, team)
	if err != nil {
		return 0, err
	}
	return len(keywords), nil
}

func (x *Index) saveKeywords(ctx context.Context, team string, keywords []string) error {
	data, err := json.Marshal(keywords)
	if err != nil {
		return errors.Wrap(err, "marshal keywords")
	}
	if err := x.store.HSet(ctx, keywordsKey, team, string(data)); err != nil {
		return errors.Wrap(err, "save keywords")
	}
	return nil
}

// Channel возвращает строку канала команды.
func (x *Index) Channel(ctx context.Context, team string) (string, bool, error) {
	return x.store.Get(ctx, team+channelSuffix)
}

// SetChannel задаёт канал команды: "slack:C123", "telegram:42",
// "discord:https://..." или просто идентификатор Slack-канала.
func (x *Index) SetChannel(ctx context.Context, team, channel string) error {
	return x.store.Set(ctx, team+channelSuffix, channel)
}

// AccessToken возвращает токен команды; глобальный токен важнее.
func (x *Index) AccessToken(ctx context.Context, team string) (string, error) {
	if x.globalToken != "" {
		return x.globalToken, nil
	}
	token, _, err := x.store.Get(ctx, team+tokenSuffix)
	return token, err
}

// Destination собирает адрес доставки команды. false - канал не настроен.
func (x *Index) Destination(ctx context.Context, team string) (news.Destination, bool, error) {
	channel, ok, err := x.Channel(ctx, team)
	if err != nil {
		return news.Destination{}, false, errors.Wrapf(err, "load channel of %s", team)
	}
	if !ok || strings.TrimSpace(channel) == "" {
		return news.Destination{}, false, nil
	}

	dest := ParseDestination(channel)
	if dest.Kind == KindSlack {
		token, err := x.AccessToken(ctx, team)
		if err != nil {
			return news.Destination{}, false, errors.Wrapf(err, "load token of %s", team)
		}
		dest.Token = token
	}
	return dest, true, nil
}

// ParseDestination разбирает строку канала вида kind:target.
func ParseDestination(channel string) news.Destination {
	channel = strings.TrimSpace(channel)
	if kind, target, ok := strings.Cut(channel, ":"); ok {
		switch strings.ToLower(kind) {
		case KindSlack, KindDiscord, KindTelegram:
			return news.Destination{Kind: strings.ToLower(kind), Target: target}
		}
	}
	return news.Destination{Kind: KindSlack, Target: channel}
}

// TrackNotification увеличивает счётчик доставленных уведомлений команды.
func (x *Index) TrackNotification(ctx context.Context, team string) (int64, error) {
	return x.store.Incr(ctx, team+notificationsSuffix)
}

// Stats возвращает настройки и счётчики всех команд по возрастанию идентификатора.
func (x *Index) Stats(ctx context.Context) ([]news.TeamStats, error) {
	snapshot, err := x.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	teams := snapshot.Teams()
	sort.Strings(teams)

	res := make([]news.TeamStats, 0, len(teams))
	for _, team := range teams {
		channel, _, err := x.Channel(ctx, team)
		if err != nil {
			return nil, errors.Wrapf(err, "load channel of %s", team)
		}

		var notifications int64
		if value, ok, err := x.store.Get(ctx, team+notificationsSuffix); err != nil {
			return nil, errors.Wrapf(err, "load counter of %s", team)
		} else if ok {
			if notifications, err = strconv.ParseInt(value, 10, 64); err != nil {
				x.logger.Warnw("malformed notification counter", "team", team, "value", value)
			}
		}

		res = append(res, news.TeamStats{
			TeamID:        team,
			Keywords:      snapshot[team],
			Channel:       channel,
			Notifications: notifications,
		})
	}
	return res, nil
}

func decodeKeywords(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return []string{}, nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(value), &keywords); err != nil {
		return nil, errors.Wrap(err, "decode keywords")
	}
	if keywords == nil {
		keywords = []string{}
	}
	return keywords, nil
}
