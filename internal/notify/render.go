package notify

import (
	"fmt"
	"strings"

	"github.com/maine/hn_keyword_bot/internal/news"
)

const (
	ellipsis = "..."
	// ItemURLPrefix - ссылка на обсуждение записи.
	ItemURLPrefix = "https://news.ycombinator.com/item?id="
)

// ItemLink возвращает ссылку на запись на Hacker News.
func ItemLink(id int64) string {
	return fmt.Sprintf("%s%d", ItemURLPrefix, id)
}

// Render собирает текст уведомления: заголовок, ссылки, краткое содержание
// (или обрезанное тело записи) и совпавшие ключевые слова.
func Render(item news.Item, keywords []string, summary string, snippetLength int) Message {
	var sb strings.Builder

	title := item.Title
	if title == "" {
		if item.By != "" {
			title = fmt.Sprintf("New %s by %s", itemType(item), item.By)
		} else {
			title = fmt.Sprintf("New %s", itemType(item))
		}
	}
	sb.WriteString(title)
	sb.WriteByte('\n')
	sb.WriteString(ItemLink(item.ID))
	sb.WriteByte('\n')
	if item.URL != "" {
		sb.WriteString(item.URL)
		sb.WriteByte('\n')
	}

	body := strings.TrimSpace(summary)
	if body == "" {
		body = Truncate(item.Text, snippetLength)
	}
	if body != "" {
		sb.WriteByte('\n')
		sb.WriteString(body)
		sb.WriteByte('\n')
	}

	if len(keywords) > 0 {
		sb.WriteString("\nKeywords: ")
		sb.WriteString(strings.Join(keywords, ", "))
	}

	return Message{Text: strings.TrimRight(sb.String(), "\n")}
}

// MirrorMessage - сообщение для зеркального вебхука: только ссылка на запись.
func MirrorMessage(item news.Item) Message {
	return Message{Text: ItemLink(item.ID)}
}

// Truncate обрезает строку до n символов и добавляет многоточие.
// n <= 0 - без ограничения.
func Truncate(s string, n int) string {
	if s == "" {
		return ""
	}
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + ellipsis
}

func itemType(item news.Item) string {
	if item.Type == "" {
		return "item"
	}
	return item.Type
}
