package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/maine/hn_keyword_bot/internal/news"
)

// discordMaxContent - лимит длины поля content у вебхука.
const discordMaxContent = 2000

// Discord отправляет сообщения во входящий вебхук; Destination.Target - URL вебхука.
type Discord struct {
	client  *http.Client
	limiter *rate.Limiter
	retry   Retry
}

// NewDiscord создаёт отправителя.
func NewDiscord(client *http.Client, perSecond float64, retry Retry) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Discord{client: client, limiter: newLimiter(perSecond), retry: retry}
}

// Dispatch реализует Dispatcher.
func (d *Discord) Dispatch(ctx context.Context, dest news.Destination, msg Message) error {
	if dest.Target == "" {
		return errors.Mark(errors.New("discord webhook url is empty"), ErrNotRetryable)
	}

	payload, err := json.Marshal(map[string]string{
		"content": Truncate(msg.Text, discordMaxContent-len(ellipsis)),
	})
	if err != nil {
		return errors.Wrap(err, "marshal discord payload")
	}

	return d.retry.Do(ctx, func(ctx context.Context) error {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		return d.post(ctx, dest.Target, payload)
	})
}

func (d *Discord) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Mark(errors.Wrap(err, "build request"), ErrNotRetryable)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Service: "discord", Code: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}
	return nil
}
