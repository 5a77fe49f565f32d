// Package feed загружает новые записи Hacker News через Firebase API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maine/hn_keyword_bot/internal/config"
	"github.com/maine/hn_keyword_bot/internal/news"
)

const userAgent = "hn_keyword_bot/1.0 (+https://news.ycombinator.com)"

// HackerNews - клиент API Hacker News.
type HackerNews struct {
	baseURL     string
	concurrency int
	maxItems    int
	client      *http.Client
	logger      *zap.SugaredLogger
}

// hnItem - запись в формате API.
type hnItem struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
}

// NewHackerNews создаёт клиент. client == nil - клиент с таймаутом из конфигурации.
func NewHackerNews(cfg config.Feed, client *http.Client, logger *zap.SugaredLogger) *HackerNews {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &HackerNews{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		concurrency: concurrency,
		maxItems:    cfg.MaxItemsPerRun,
		client:      client,
		logger:      logger,
	}
}

// LatestID возвращает идентификатор самой свежей записи.
func (h *HackerNews) LatestID(ctx context.Context) (int64, error) {
	var id int64
	if err := h.getJSON(ctx, h.baseURL+"/maxitem.json", &id); err != nil {
		return 0, errors.Wrap(err, "fetch latest id")
	}
	return id, nil
}

// ItemsSince возвращает записи с идентификатором больше since по возрастанию.
// Удалённые, «мёртвые» и пустые записи пропускаются. Любая ошибка сети или
// декодирования проваливает весь вызов.
func (h *HackerNews) ItemsSince(ctx context.Context, since int64) ([]news.Item, error) {
	latest, err := h.LatestID(ctx)
	if err != nil {
		return nil, err
	}
	if latest <= since {
		return []news.Item{}, nil
	}

	upTo := latest
	if h.maxItems > 0 && upTo-since > int64(h.maxItems) {
		upTo = since + int64(h.maxItems)
		h.logger.Warnw("backlog truncated", "since", since, "latest", latest, "up_to", upTo)
	}

	slots := make([]*news.Item, upTo-since)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i := range slots {
		id := since + 1 + int64(i)
		g.Go(func() error {
			item, err := h.fetchItem(gctx, id)
			if err != nil {
				return err
			}
			slots[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]news.Item, 0, len(slots))
	for _, item := range slots {
		if item != nil {
			items = append(items, *item)
		}
	}
	h.logger.Debugw("items fetched", "since", since, "up_to", upTo, "count", len(items))
	return items, nil
}

func (h *HackerNews) fetchItem(ctx context.Context, id int64) (*news.Item, error) {
	var raw *hnItem
	if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &raw); err != nil {
		return nil, errors.Wrapf(err, "fetch item %d", id)
	}
	if raw == nil || raw.Deleted || raw.Dead {
		return nil, nil
	}

	text, err := plainText(raw.Text)
	if err != nil {
		return nil, errors.Wrapf(err, "parse text of item %d", id)
	}

	item := &news.Item{
		ID:    raw.ID,
		Type:  raw.Type,
		By:    raw.By,
		URL:   strings.TrimSpace(raw.URL),
		Title: strings.TrimSpace(raw.Title),
		Text:  text,
	}
	if item.ID == 0 {
		item.ID = id
	}
	if raw.Time > 0 {
		item.Time = time.Unix(raw.Time, 0).UTC()
	}
	return item, nil
}

func (h *HackerNews) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// plainText превращает HTML тела записи в текст: абзацы и переносы строк
// становятся переводами строки, сущности раскрываются.
func plainText(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("p, br").BeforeHtml("\n")

	lines := strings.Split(doc.Text(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}
