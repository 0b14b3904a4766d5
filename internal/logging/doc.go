// Package logging assembles the slog loggers used by romimport.
//
// The terminal gets a compact, optionally colored line format (or JSON when
// configured) while the log file under the configured log directory always
// receives JSON. Context helpers tag lines with queue item IDs, pipeline
// steps, and correlation IDs, and ErrorAttrs turns classified failures into
// error_kind and error_hint fields.
package logging
