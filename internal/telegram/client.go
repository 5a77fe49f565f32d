package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// TelegramClient определяет интерфейс для работы с Telegram Bot API.
// Это позволяет легко создавать моки для тестирования.
type TelegramClient interface {
	SendMessage(ctx context.Context, chatID string, text string, parseMode string) error
}

// Client инкапсулирует работу с Telegram Bot API.
type Client struct {
	client *http.Client
	apiURL string
}

// Убеждаемся, что Client реализует интерфейс TelegramClient.
var _ TelegramClient = (*Client)(nil)

// NewClient создаёт клиента. baseURL - корень Bot API (https://api.telegram.org).
func NewClient(baseURL, token string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		client: client,
		apiURL: fmt.Sprintf("%s/bot%s", strings.TrimRight(baseURL, "/"), token),
	}
}

// SendMessage отправляет текстовое сообщение.
func (c *Client) SendMessage(ctx context.Context, chatID string, text string, parseMode string) error {
	if chatID == "" {
		return errors.New("chat_id is empty")
	}
	payload := sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	}

	var resp apiResponse
	if err := c.post(ctx, "sendMessage", payload, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return errors.Newf("telegram: %s", resp.Description)
	}
	return nil
}

func (c *Client) post(ctx context.Context, method string, body interface{}, out *apiResponse) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	// Bot API кладёт причину ошибки в description, читаем тело и при 4xx
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode < 400 {
		return errors.Wrap(err, "decode response")
	}
	if resp.StatusCode >= 400 {
		if out.Description != "" {
			return errors.Newf("telegram api status %d: %s", resp.StatusCode, out.Description)
		}
		return errors.Newf("telegram api status %d", resp.StatusCode)
	}
	return nil
}
