package archive

import (
	"errors"
	"fmt"

	"romimport/internal/services"
)

var (
	// ErrEncrypted reports a password-protected archive or member.
	ErrEncrypted = errors.New("archive is password protected")
	// ErrTooLarge reports that expansion exceeded the configured byte budget.
	ErrTooLarge = errors.New("archive expands beyond size limit")
	// ErrNotArchive reports a file without a recognised container signature.
	ErrNotArchive = errors.New("not a recognised archive")
)

// ExtractionError describes a failed expansion. It matches
// services.ErrExtractionFailed with errors.Is.
type ExtractionError struct {
	Path   string
	Member string
	Cause  error
}

func (e *ExtractionError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("extract %s (member %s): %v", e.Path, e.Member, e.Cause)
	}
	return fmt.Sprintf("extract %s: %v", e.Path, e.Cause)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{services.ErrExtractionFailed, e.Cause}
}
