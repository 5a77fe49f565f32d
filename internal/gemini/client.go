package gemini

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient определяет интерфейс для работы с Gemini API.
// Это позволяет легко создавать моки для тестирования.
type GeminiClient interface {
	GenerateText(ctx context.Context, model string, prompt string) (string, error)
}

// Client инкапсулирует работу с Gemini API через официальный SDK.
type Client struct {
	client *genai.Client
	retry  retryPolicy
	logger *zap.SugaredLogger
}

// Убеждаемся, что Client реализует интерфейс GeminiClient.
var _ GeminiClient = (*Client)(nil)

// ErrQuotaExceeded - дневная квота исчерпана, повторять бессмысленно до следующих суток.
var ErrQuotaExceeded = errors.New("gemini quota exceeded")

// NewClient создаёт новый клиент для работы с Gemini API.
func NewClient(ctx context.Context, apiKey string, logger *zap.SugaredLogger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	return &Client{
		client: client,
		retry:  defaultRetryPolicy(),
		logger: logger,
	}, nil
}

// GenerateText отправляет запрос к Gemini API и возвращает текстовый ответ.
// Запуск бота короткий, поэтому ожидания между повторами измеряются секундами,
// а исчерпанная квота и лимит частоты не повторяются вовсе.
func (c *Client) GenerateText(ctx context.Context, model string, prompt string) (string, error) {
	return c.retry.do(ctx, c.logger, func(ctx context.Context) (string, error) {
		result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		text, err := result.Text()
		if err != nil {
			return "", errors.Wrap(err, "get text from result")
		}
		return text, nil
	})
}

type errorClass int

const (
	classPermanent errorClass = iota
	classQuota
	classRateLimit
	classUnavailable
	classTemporary
)

type retryPolicy struct {
	attempts         int
	baseDelay        time.Duration
	unavailableDelay time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 3, baseDelay: 2 * time.Second, unavailableDelay: 5 * time.Second}
}

func (p retryPolicy) do(ctx context.Context, logger *zap.SugaredLogger, call func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	var lastClass errorClass
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay * time.Duration(attempt)
			if lastClass == classUnavailable {
				delay = p.unavailableDelay
			}
			logger.Debugw("retrying gemini request", "attempt", attempt+1, "max_attempts", p.attempts, "delay", delay)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, err := call(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err
		lastClass = classifyError(err.Error())

		switch lastClass {
		case classQuota:
			return "", errors.Mark(errors.Wrap(err, "gemini quota exceeded"), ErrQuotaExceeded)
		case classRateLimit:
			// ждать минуту внутри запуска нельзя: следующий запуск начнётся раньше
			return "", errors.Wrap(err, "gemini rate limited")
		case classUnavailable, classTemporary:
			logger.Warnw("temporary gemini error", "attempt", attempt+1, "error", err)
			continue
		default:
			return "", errors.Wrap(err, "generate content")
		}
	}

	return "", errors.Wrap(lastErr, "max retries exceeded")
}

// classifyError раскладывает ошибку SDK по тексту: коды HTTP приходят только в сообщении.
func classifyError(errStr string) errorClass {
	errLower := strings.ToLower(errStr)
	is429 := strings.Contains(errLower, "429")

	switch {
	// дневной лимит бесплатного тарифа
	case is429 && (strings.Contains(errLower, "limit: 20") ||
		strings.Contains(errLower, "generate_content_free_tier_requests")):
		return classQuota
	case is429 ||
		strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "too many requests") ||
		strings.Contains(errLower, "resource exhausted"):
		return classRateLimit
	case strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "service unavailable") ||
		strings.Contains(errLower, "overloaded"):
		return classUnavailable
	case strings.Contains(errLower, "500") ||
		strings.Contains(errLower, "502") ||
		strings.Contains(errLower, "504") ||
		strings.Contains(errLower, "internal server error") ||
		strings.Contains(errLower, "bad gateway") ||
		strings.Contains(errLower, "gateway timeout"):
		return classTemporary
	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "daily limit") ||
		strings.Contains(errLower, "403"):
		return classQuota
	default:
		return classPermanent
	}
}
