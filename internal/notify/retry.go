package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultAttempts - количество попыток отправки при ошибке.
	DefaultAttempts = 3
	// DefaultRetryDelay - шаг задержки между попытками (линейный рост).
	DefaultRetryDelay = 2 * time.Second
	maxRetryDelay     = 10 * time.Second
)

// Retry описывает политику повторов.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetry - политика по умолчанию: 3 попытки, 2s, 4s.
func DefaultRetry() Retry {
	return Retry{Attempts: DefaultAttempts, Delay: DefaultRetryDelay}
}

// Do вызывает send, повторяя повторяемые ошибки.
func (r Retry) Do(ctx context.Context, send func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := r.Delay * time.Duration(attempt)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := send(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		// чат не найден, токен отозван и т.п. повтором не лечатся
		if !IsRetryable(err) {
			return err
		}
	}

	return errors.Wrap(lastErr, "max retries exceeded")
}

// StatusError - ответ HTTP API с кодом ошибки.
type StatusError struct {
	Service string
	Code    int
	Detail  string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s api status %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s api status %d: %s", e.Service, e.Code, e.Detail)
}

// ErrNotRetryable помечает ошибки, которые не нужно повторять.
var ErrNotRetryable = errors.New("not retryable")

var nonRetryableErrors = []string{
	"chat not found",
	"bot was blocked",
	"user is deactivated",
	"chat_id is empty",
	"message is too long",
	"bad request",
	"channel_not_found",
	"not_in_channel",
	"is_archived",
	"invalid_auth",
	"not_authed",
	"token_revoked",
	"account_inactive",
}

// IsRetryable определяет, можно ли повторить отправку при данной ошибке.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotRetryable) || errors.Is(err, ErrUnknownKind) {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		if status.Code == 429 || status.Code >= 500 {
			return true
		}
		if status.Code >= 400 {
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, nonRetryable := range nonRetryableErrors {
		if strings.Contains(errStr, nonRetryable) {
			return false
		}
	}

	// сетевые ошибки и временные проблемы API
	return true
}
