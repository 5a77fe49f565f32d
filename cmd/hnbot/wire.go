package main

import (
	"context"
	"net/http"
	"time"

	"github.com/maine/hn_keyword_bot/internal/app"
	"github.com/maine/hn_keyword_bot/internal/dedup"
	"github.com/maine/hn_keyword_bot/internal/feed"
	"github.com/maine/hn_keyword_bot/internal/gemini"
	"github.com/maine/hn_keyword_bot/internal/notify"
	"github.com/maine/hn_keyword_bot/internal/store"
	"github.com/maine/hn_keyword_bot/internal/subscription"
	"github.com/maine/hn_keyword_bot/internal/telegram"
)

// bot - собранные компоненты одного процесса.
type bot struct {
	store        store.Store
	index        *subscription.Index
	orchestrator *app.Orchestrator
}

func (b *bot) Close() error {
	return b.store.Close()
}

// openStore открывает хранилище и индекс подписок (команды teams, subscribe, channel).
func openStore(ctx context.Context, opts *options) (*bot, error) {
	s, err := store.Open(ctx, opts.cfg.Storage, time.Now)
	if err != nil {
		return nil, err
	}
	return &bot{
		store: s,
		index: subscription.NewIndex(s, opts.env.SlackToken, opts.logger.Named("subscription")),
	}, nil
}

// build собирает оркестратор со всеми зависимостями.
func build(ctx context.Context, opts *options) (*bot, error) {
	b, err := openStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	cfg := opts.cfg
	logger := opts.logger

	httpClient := &http.Client{Timeout: cfg.Feed.Timeout}
	retry := notify.DefaultRetry()

	router := notify.NewRouter().
		Handle(subscription.KindSlack, notify.NewSlack(cfg.Dispatch.SlackAPIURL, httpClient, cfg.Dispatch.RatePerSecond, retry)).
		Handle(subscription.KindDiscord, notify.NewDiscord(httpClient, cfg.Dispatch.RatePerSecond, retry))
	if opts.env.TelegramBotToken != "" {
		tgClient := telegram.NewClient(cfg.Dispatch.TelegramAPIURL, opts.env.TelegramBotToken, httpClient)
		router.Handle(subscription.KindTelegram, telegram.NewDispatcher(tgClient, cfg.Dispatch.RatePerSecond, retry))
	} else {
		logger.Debugw("TELEGRAM_BOT_TOKEN is not set, telegram destinations are disabled")
	}

	deps := app.Deps{
		Feed:          feed.NewHackerNews(cfg.Feed, httpClient, logger.Named("feed")),
		Subscriptions: b.index,
		RunLock:       dedup.NewRunGuard(b.store, cfg.Guards.RunTTL),
		Seen:          dedup.NewItemGuard(b.store, cfg.Guards.ItemTTL),
		Checkpoints:   b.store,
		Dispatcher:    router,
		MirrorWebhook: cfg.Dispatch.MirrorWebhook,
		Concurrency:   cfg.Dispatch.Concurrency,
		SnippetLength: cfg.Dispatch.SnippetLength,
		Logger:        logger.Named("run"),
	}

	if cfg.Gemini.Enabled {
		client, err := gemini.NewClient(ctx, opts.env.GeminiAPIKey, logger.Named("gemini"))
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		deps.Summarizer = gemini.NewSummarizer(client, cfg.Gemini)
	}

	b.orchestrator = app.New(deps)
	return b, nil
}
