package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// Handler centralizes logging and reporting for caught gateway failures.
// It never re-raises: callers receive the user-facing message and code to
// surface through the error event.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err and returns the user-facing message together with the
// widget error code (UNKNOWN_ERROR when the failure carries none).
func (h *Handler) Handle(ctx context.Context, err error) (string, string) {
	if err == nil {
		return "", ""
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		log.Error("widget error",
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		)

		if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(err)
		}

		userMessage := appErr.UserMessage
		if userMessage == "" {
			userMessage = "An unknown error occurred."
		}

		code := appErr.Code
		if code == "" {
			code = CodeUnknown
		}

		return userMessage, code
	}

	log.Error("unexpected error",
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
	)

	if h.sentryEnabled {
		h.sendToSentry(err)
	}

	return "An unknown error occurred.", CodeUnknown
}

func (h *Handler) sendToSentry(err error) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		sentry.CaptureException(err)
	})
}
