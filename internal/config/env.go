package config

import (
	"os"
)

// EnvConfig содержит токены и другие переменные окружения.
type EnvConfig struct {
	RedisURL         string
	SlackToken       string // глобальный токен для self-hosted установки, важнее токенов команд
	TelegramBotToken string
	DiscordWebhook   string
	GeminiAPIKey     string
	CronSecret       string // если задан, /api/cron требует Authorization: Bearer <secret>
	Port             string
}

// LoadEnvConfig читает переменные окружения. Все они опциональны:
// отсутствие токена канала лишь отключает этот канал.
func LoadEnvConfig() *EnvConfig {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		// Имя переменной из первой версии бота
		redisURL = os.Getenv("REDIS_LABS_URL")
	}

	return &EnvConfig{
		RedisURL:         redisURL,
		SlackToken:       os.Getenv("SLACK_OAUTH_TOKEN"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DiscordWebhook:   os.Getenv("DISCORD_CHANNEL_WEBHOOK"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		CronSecret:       os.Getenv("CRON_SECRET"),
		Port:             os.Getenv("PORT"),
	}
}
