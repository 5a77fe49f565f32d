// Package telegram доставляет уведомления в чаты Telegram через Bot API.
package telegram

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/maine/hn_keyword_bot/internal/news"
	"github.com/maine/hn_keyword_bot/internal/notify"
)

const (
	// telegramRateLimitPerSecond - лимит Telegram Bot API: 30 сообщений в секунду
	telegramRateLimitPerSecond = 30
	// telegramMaxMessageLength - максимальная длина сообщения в Telegram
	telegramMaxMessageLength = 4096
)

// Dispatcher реализует notify.Dispatcher; Destination.Target - chat_id.
type Dispatcher struct {
	client  TelegramClient
	limiter *rate.Limiter
	retry   notify.Retry
}

var _ notify.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher создаёт отправителя. perSecond <= 0 или больше лимита Bot API
// заменяется лимитом Bot API.
func NewDispatcher(client TelegramClient, perSecond float64, retry notify.Retry) *Dispatcher {
	if perSecond <= 0 || perSecond > telegramRateLimitPerSecond {
		perSecond = telegramRateLimitPerSecond
	}
	return &Dispatcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		retry:   retry,
	}
}

// Dispatch реализует notify.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, dest news.Destination, msg notify.Message) error {
	if dest.Target == "" {
		return errors.Mark(errors.New("chat_id is empty"), notify.ErrNotRetryable)
	}
	text := notify.Truncate(msg.Text, telegramMaxMessageLength-3)

	return d.retry.Do(ctx, func(ctx context.Context) error {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		// без parse_mode: заголовки записей содержат произвольные символы разметки
		return d.client.SendMessage(ctx, dest.Target, text, "")
	})
}
