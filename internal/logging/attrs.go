package logging

import (
	"context"
	"log/slog"
	"time"

	"romimport/internal/services"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Group nests attrs under key.
func Group(key string, attrs ...Attr) Attr {
	return slog.Group(key, Args(attrs...)...)
}

// Args converts attributes into the variadic form slog methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// ErrorAttrs expands err into the error, error_kind and error_hint fields.
func ErrorAttrs(err error) []Attr {
	if err == nil {
		return nil
	}
	details := services.Details(err)
	attrs := []Attr{
		Error(err),
		String(FieldErrorKind, string(details.Kind)),
	}
	if hint := hintFor(details.Kind); hint != "" {
		attrs = append(attrs, String(FieldErrorHint, hint))
	}
	return attrs
}

func hintFor(kind services.ErrorKind) string {
	switch kind {
	case services.KindNoSystemMatched:
		return "choose a system manually or check the file extension"
	case services.KindSystemConflict:
		return "run 'romimport queue choose' to pick a system"
	case services.KindExtractionFailed:
		return "verify the archive opens with a desktop tool"
	case services.KindMoveOrCopyFailed:
		return "check free space and permissions on the library directory"
	case services.KindDigestUnavailable:
		return "check the file is readable"
	case services.KindPersistenceFailed:
		return "check the state directory is writable"
	case services.KindLookupFailed:
		return "check enrichment.base_url and network connectivity"
	default:
		return ""
	}
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
