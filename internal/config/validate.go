package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.StagingDir == c.Paths.LibraryDir {
		return errors.New("paths.staging_dir must differ from paths.library_dir")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Import.MaxArchiveDepth < 0 {
		return errors.New("import.max_archive_depth must be zero or positive")
	}
	if c.Import.MaxExtractedBytes < 0 {
		return errors.New("import.max_extracted_bytes must be zero or positive")
	}
	for _, pattern := range append(append([]string{}, c.Import.Include...), c.Import.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("import pattern %q is not a valid glob", pattern)
		}
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if c.Enrichment.TimeoutSeconds < 0 {
		return errors.New("enrichment.timeout_seconds must be positive")
	}
	if c.Enrichment.Retries < 0 {
		return errors.New("enrichment.retries must be zero or positive")
	}
	if c.Enrichment.Enabled && !strings.HasPrefix(c.Enrichment.BaseURL, "http") {
		return fmt.Errorf("enrichment.base_url %q must be an http(s) URL when enrichment is enabled", c.Enrichment.BaseURL)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollIntervalMillis <= 0 {
		return errors.New("workflow.queue_poll_interval_ms must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}
