package logging

import (
	"context"
	"log/slog"

	"romimport/internal/services"
)

// Standard record keys shared by every package.
const (
	FieldComponent     = "component"
	FieldItemID        = "item_id"
	FieldURL           = "url"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	FieldErrorKind     = "error_kind"
	FieldErrorHint     = "error_hint"
	FieldSystem        = "system"
)

// ContextFields turns the item scope on ctx into record attributes. Zero
// values are left out.
func ContextFields(ctx context.Context) []slog.Attr {
	scope, ok := services.ScopeFrom(ctx)
	if !ok {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if scope.ItemID != 0 {
		fields = append(fields, Int64(FieldItemID, scope.ItemID))
	}
	if scope.URL != "" {
		fields = append(fields, String(FieldURL, scope.URL))
	}
	if scope.Stage != "" {
		fields = append(fields, String(FieldStage, scope.Stage))
	}
	if scope.RequestID != "" {
		fields = append(fields, String(FieldCorrelationID, scope.RequestID))
	}
	return fields
}

// WithContext returns logger with the item scope of ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
