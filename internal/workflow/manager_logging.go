package workflow

import (
	"context"
	"log/slog"

	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/services"
)

func withItemContext(ctx context.Context, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item == nil {
		return ctx
	}
	return services.WithItem(ctx, item.ID, item.URL, requestID)
}

// stepContext tags ctx with the step about to run.
func stepContext(ctx context.Context, step string) context.Context {
	return services.WithStage(ctx, step)
}

func (m *Manager) itemLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, m.logger)
}
