package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/services"
)

// recordFailure stores err on item and moves it to failure.
func (m *Manager) recordFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, stepErr error) {
	queue.ApplyFailure(item, stepErr)
	message := classifyFailure(stepErr)

	details := services.Details(stepErr)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "item_failure"),
		logging.String("error_operation", details.Operation),
	}
	attrs = append(attrs, logging.ErrorAttrs(stepErr)...)
	logger.Error("item failed", logging.Args(attrs...)...)

	if err := m.transition(ctx, item, queue.StatusFailure, message); err != nil {
		m.logTransitionError(logger, err, "failure")
	}
	m.setLastError(stepErr)
}

func classifyFailure(err error) string {
	if err == nil {
		return "failed without error detail"
	}
	details := services.Details(err)
	kind := string(details.Kind)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	if kind == "" || kind == string(services.KindUnknown) {
		return message
	}
	return fmt.Sprintf("%s: %s", kind, message)
}

func (m *Manager) logTransitionError(logger *slog.Logger, err error, target string) {
	switch {
	case errors.Is(err, errItemRemoved):
		logger.Debug("item removed before its result was recorded", logging.String("target_status", target))
	case errors.Is(err, context.Canceled):
		logger.Debug("shutting down, could not record item status", logging.String("target_status", target))
	default:
		logger.Error("failed to persist item status",
			logging.String("target_status", target),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		m.setLastError(err)
	}
}
