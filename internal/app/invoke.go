package app

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Response - результат единственной точки входа: код в стиле HTTP и тело.
type Response struct {
	Status int
	Body   any
}

// ErrorBody - тело ответа при отказе.
type ErrorBody struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message"`
}

const duplicateMessage = "Duplicate cron job"

// Invoke выполняет запуск и переводит результат в ответ: 200 со сводкой,
// 500 для дубликата и 500 для ошибки выполнения.
func (o *Orchestrator) Invoke(ctx context.Context) Response {
	summary, err := o.Run(ctx)
	switch {
	case err == nil:
		return Response{Status: http.StatusOK, Body: summary}
	case errors.Is(err, ErrDuplicateRun):
		return Response{
			Status: http.StatusInternalServerError,
			Body:   ErrorBody{Error: "duplicate_run", Message: duplicateMessage},
		}
	default:
		o.logger.Errorw("run failed", "run_id", summary.RunID, "error", err)
		return Response{
			Status: http.StatusInternalServerError,
			Body: ErrorBody{
				Error:      "execution_error",
				StatusCode: http.StatusInternalServerError,
				Message:    err.Error(),
			},
		}
	}
}
