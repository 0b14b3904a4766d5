package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	ErrDigestUnavailable      = errors.New("digest unavailable")
	ErrAlreadyInLibrary       = errors.New("already in library")
	ErrNoSystemMatched        = errors.New("no system matched")
	ErrUnsupportedSystem      = errors.New("unsupported system")
	ErrExtractionFailed       = errors.New("extraction failed")
	ErrMoveOrCopyFailed       = errors.New("move or copy failed")
	ErrMultipleFailures       = errors.New("multiple failures")
	ErrMultipleSystemConflict = errors.New("multiple system conflict")
	ErrPersistenceFailed      = errors.New("persistence failed")
	ErrLookupFailed           = errors.New("lookup failed")
)

// ErrorKind is the stable classification recorded on failed queue items.
type ErrorKind string

const (
	KindUnknown           ErrorKind = "unknown"
	KindValidation        ErrorKind = "validation"
	KindConfiguration     ErrorKind = "configuration"
	KindNotFound          ErrorKind = "not_found"
	KindTimeout           ErrorKind = "timeout"
	KindTransient         ErrorKind = "transient"
	KindDigestUnavailable ErrorKind = "digest_unavailable"
	KindAlreadyInLibrary  ErrorKind = "already_in_library"
	KindNoSystemMatched   ErrorKind = "no_system_matched"
	KindUnsupportedSystem ErrorKind = "unsupported_system"
	KindExtractionFailed  ErrorKind = "extraction_failed"
	KindMoveOrCopyFailed  ErrorKind = "move_or_copy_failed"
	KindMultipleFailures  ErrorKind = "multiple_failures"
	KindSystemConflict    ErrorKind = "multiple_system_conflict"
	KindPersistenceFailed ErrorKind = "persistence_failed"
	KindLookupFailed      ErrorKind = "lookup_failed"
)

// Order matters: the most specific pipeline markers are checked before the
// generic ones so a timeout during extraction still reports extraction_failed.
var markerKinds = []struct {
	marker error
	kind   ErrorKind
}{
	{ErrDigestUnavailable, KindDigestUnavailable},
	{ErrAlreadyInLibrary, KindAlreadyInLibrary},
	{ErrNoSystemMatched, KindNoSystemMatched},
	{ErrUnsupportedSystem, KindUnsupportedSystem},
	{ErrExtractionFailed, KindExtractionFailed},
	{ErrMoveOrCopyFailed, KindMoveOrCopyFailed},
	{ErrMultipleFailures, KindMultipleFailures},
	{ErrMultipleSystemConflict, KindSystemConflict},
	{ErrPersistenceFailed, KindPersistenceFailed},
	{ErrLookupFailed, KindLookupFailed},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
	{ErrNotFound, KindNotFound},
	{ErrTimeout, KindTimeout},
	{ErrTransient, KindTransient},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return &wrappedError{marker: marker, stage: stage, operation: operation, message: message, detail: detail, cause: err}
	}
	return &wrappedError{marker: marker, stage: stage, operation: operation, message: message, detail: detail}
}

type wrappedError struct {
	marker    error
	stage     string
	operation string
	message   string
	detail    string
	cause     error
}

func (e *wrappedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker, e.detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.marker, e.detail)
}

func (e *wrappedError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// ErrorDetails exposes the structured parts of an error built by Wrap.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts structured context from err. Errors that were not built by
// Wrap still receive a Kind derived from any marker they carry.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindOf(err), Message: err.Error()}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) {
		details.Stage = wrapped.stage
		details.Operation = wrapped.operation
		if msg := strings.TrimSpace(wrapped.message); msg != "" {
			details.Message = msg
		}
		details.Cause = wrapped.cause
	}
	return details
}

// KindOf returns the classification of err based on the markers it wraps.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var multi *MultiError
	if errors.As(err, &multi) {
		return KindMultipleFailures
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return KindUnknown
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// MultiError collects independent failures from a batch operation.
type MultiError struct {
	Errors []error
}

// Add appends err when it is non-nil.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil when nothing failed, the single error when exactly one
// failed, and the aggregate otherwise.
func (m *MultiError) Err() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}

func (m *MultiError) Error() string {
	parts := make([]string, 0, len(m.Errors))
	for _, err := range m.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%s (%d): %s", ErrMultipleFailures, len(m.Errors), strings.Join(parts, "; "))
}

func (m *MultiError) Unwrap() []error {
	out := make([]error, 0, len(m.Errors)+1)
	out = append(out, ErrMultipleFailures)
	out = append(out, m.Errors...)
	return out
}
