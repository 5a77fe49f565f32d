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

// Slack отправляет сообщения через chat.postMessage с токеном команды.
type Slack struct {
	apiURL  string
	client  *http.Client
	limiter *rate.Limiter
	retry   Retry
}

// NewSlack создаёт отправителя. perSecond <= 0 отключает ограничение частоты.
func NewSlack(apiURL string, client *http.Client, perSecond float64, retry Retry) *Slack {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Slack{
		apiURL:  strings.TrimRight(apiURL, "/"),
		client:  client,
		limiter: newLimiter(perSecond),
		retry:   retry,
	}
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Dispatch реализует Dispatcher.
func (s *Slack) Dispatch(ctx context.Context, dest news.Destination, msg Message) error {
	if dest.Target == "" {
		return errors.Mark(errors.New("slack channel is empty"), ErrNotRetryable)
	}
	if dest.Token == "" {
		return errors.Mark(errors.Newf("no slack token for channel %s", dest.Target), ErrNotRetryable)
	}

	payload, err := json.Marshal(map[string]any{
		"channel":      dest.Target,
		"text":         msg.Text,
		"unfurl_links": false,
	})
	if err != nil {
		return errors.Wrap(err, "marshal slack payload")
	}

	return s.retry.Do(ctx, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		return s.post(ctx, dest.Token, payload)
	})
}

func (s *Slack) post(ctx context.Context, token string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if resp.StatusCode >= 400 {
		return &StatusError{Service: "slack", Code: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}

	var out slackResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return errors.Wrap(err, "decode slack response")
	}
	if !out.OK {
		return errors.Newf("slack error: %s", out.Error)
	}
	return nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
