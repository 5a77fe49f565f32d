package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Бэкенды хранилища.
const (
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendMemory = "memory"
)

type (
	// Root объединяет все конфигурационные блоки.
	Root struct {
		Feed     Feed     `yaml:"feed"`
		Storage  Storage  `yaml:"storage"`
		Guards   Guards   `yaml:"guards"`
		Dispatch Dispatch `yaml:"dispatch"`
		Server   Server   `yaml:"server"`
		Gemini   Gemini   `yaml:"gemini"`
		Logging  Logging  `yaml:"logging"`
	}

	// Feed описывает источник записей (Hacker News API).
	Feed struct {
		BaseURL        string        `yaml:"base_url"`
		Timeout        time.Duration `yaml:"timeout"`
		Concurrency    int           `yaml:"concurrency"`
		MaxItemsPerRun int           `yaml:"max_items_per_run"` // защита от огромного хвоста после простоя
	}

	// Storage описывает key-value хранилище.
	Storage struct {
		Backend  string `yaml:"backend"` // redis | file | memory
		RedisURL string `yaml:"redis_url"`
		Path     string `yaml:"path"` // только для file
	}

	// Guards задаёт TTL маркеров дедупликации.
	Guards struct {
		RunTTL  time.Duration `yaml:"run_ttl"`
		ItemTTL time.Duration `yaml:"item_ttl"`
	}

	// Dispatch описывает отправку уведомлений.
	Dispatch struct {
		Concurrency    int     `yaml:"concurrency"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		SnippetLength  int     `yaml:"snippet_length"`
		MirrorWebhook  string  `yaml:"mirror_webhook"` // Discord-вебхук, куда дублируется каждая совпавшая запись
		SlackAPIURL    string  `yaml:"slack_api_url"`
		TelegramAPIURL string  `yaml:"telegram_api_url"`
	}

	// Server - HTTP-поверхность для внешнего планировщика.
	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	}

	// Gemini - опциональные краткие пересказы записей.
	Gemini struct {
		Enabled        bool   `yaml:"enabled"`
		ModelSummary   string `yaml:"model_summary"`
		MaxInputLength int    `yaml:"max_input_length"`
	}

	// Logging - уровень и формат логов.
	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	}
)

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() Root {
	var cfg Root
	cfg.applyDefaults()
	return cfg
}

// LoadRoot читает основной файл конфигурации. Отсутствующий файл - не ошибка:
// используются значения по умолчанию.
func LoadRoot(path string) (Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Root{}, errors.Wrap(err, "read config")
	}

	var cfg Root
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Root{}, errors.Wrap(err, "unmarshal config")
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ApplyEnv переносит значения из окружения поверх файла.
func (r *Root) ApplyEnv(env *EnvConfig) {
	if env == nil {
		return
	}
	if env.RedisURL != "" {
		r.Storage.RedisURL = env.RedisURL
	}
	if env.DiscordWebhook != "" {
		r.Dispatch.MirrorWebhook = env.DiscordWebhook
	}
	if env.Port != "" {
		r.Server.Addr = ":" + env.Port
	}
	if env.GeminiAPIKey == "" {
		r.Gemini.Enabled = false
	}
}

func (r *Root) applyDefaults() {
	if r.Feed.BaseURL == "" {
		r.Feed.BaseURL = "https://hacker-news.firebaseio.com/v0"
	}
	if r.Feed.Timeout <= 0 {
		r.Feed.Timeout = 15 * time.Second
	}
	if r.Feed.Concurrency <= 0 {
		r.Feed.Concurrency = 8
	}
	if r.Feed.MaxItemsPerRun <= 0 {
		r.Feed.MaxItemsPerRun = 500
	}
	if r.Storage.Backend == "" {
		r.Storage.Backend = BackendRedis
	}
	if r.Guards.RunTTL <= 0 {
		r.Guards.RunTTL = 5 * time.Second
	}
	if r.Guards.ItemTTL <= 0 {
		r.Guards.ItemTTL = 24 * time.Hour
	}
	if r.Dispatch.Concurrency <= 0 {
		r.Dispatch.Concurrency = 8
	}
	if r.Dispatch.RatePerSecond <= 0 {
		r.Dispatch.RatePerSecond = 20
	}
	if r.Dispatch.SnippetLength <= 0 {
		r.Dispatch.SnippetLength = 280
	}
	if r.Dispatch.SlackAPIURL == "" {
		r.Dispatch.SlackAPIURL = "https://slack.com/api"
	}
	if r.Dispatch.TelegramAPIURL == "" {
		r.Dispatch.TelegramAPIURL = "https://api.telegram.org"
	}
	if r.Server.Addr == "" {
		r.Server.Addr = ":8080"
	}
	if r.Server.ShutdownTimeout <= 0 {
		r.Server.ShutdownTimeout = 10 * time.Second
	}
	if r.Gemini.ModelSummary == "" {
		r.Gemini.ModelSummary = "gemini-2.0-flash"
	}
	if r.Gemini.MaxInputLength <= 0 {
		r.Gemini.MaxInputLength = 4000
	}
	if r.Logging.Level == "" {
		r.Logging.Level = "info"
	}
}
