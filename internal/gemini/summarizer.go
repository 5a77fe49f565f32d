// Package gemini добавляет к уведомлениям краткий пересказ записи.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/maine/hn_keyword_bot/internal/config"
	"github.com/maine/hn_keyword_bot/internal/news"
)

// Summarizer пересказывает запись Hacker News одним предложением.
type Summarizer struct {
	client GeminiClient
	cfg    config.Gemini
}

// NewSummarizer создаёт новый экземпляр суммаризатора.
func NewSummarizer(client GeminiClient, cfg config.Gemini) *Summarizer {
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = 4000
	}
	return &Summarizer{client: client, cfg: cfg}
}

// Summarize возвращает пересказ записи. Пустая строка без ошибки - пересказывать нечего.
func (s *Summarizer) Summarize(ctx context.Context, item news.Item) (string, error) {
	if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.Text) == "" {
		return "", nil
	}

	responseText, err := s.client.GenerateText(ctx, s.cfg.ModelSummary, s.buildPrompt(item))
	if err != nil {
		return "", errors.Wrapf(err, "summarize item %d", item.ID)
	}
	return cleanSummary(responseText), nil
}

func (s *Summarizer) buildPrompt(item news.Item) string {
	text := item.Text
	if runes := []rune(text); len(runes) > s.cfg.MaxInputLength {
		text = string(runes[:s.cfg.MaxInputLength])
	}

	return fmt.Sprintf(`You summarize Hacker News posts for engineering team chat notifications.
Write exactly one neutral, factual sentence in English describing what the post is about.
Do not invent facts that are not in the post. Reply with the sentence only, no markdown, no quotes.

Title: %s
URL: %s
Text:
%s`, item.Title, item.URL, text)
}

// cleanSummary снимает markdown-обёртку и кавычки, которые модель иногда добавляет.
func cleanSummary(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl != -1 && !strings.Contains(text[:nl], " ") {
			// язык блока: ```text
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	text = strings.TrimSpace(text)
	text = strings.Trim(text, `"`)
	return strings.Join(strings.Fields(text), " ")
}
