package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImport()
	c.normalizeEnrichment()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.library_dir", &c.Paths.LibraryDir, defaultLibraryDir},
		{"paths.staging_dir", &c.Paths.StagingDir, defaultStagingDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.dat_dir", &c.Paths.DatDir, ""},
		{"paths.registry_file", &c.Paths.RegistryFile, ""},
	}
	for _, field := range fields {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" {
			trimmed = field.fallback
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeImport() {
	if c.Import.MaxArchiveDepth == 0 {
		c.Import.MaxArchiveDepth = defaultMaxArchiveDepth
	}
	if c.Import.MaxExtractedBytes == 0 {
		c.Import.MaxExtractedBytes = defaultMaxExtractedBytes
	}
	c.Import.Include = trimPatterns(c.Import.Include)
	if len(c.Import.Include) == 0 {
		c.Import.Include = []string{"**/*"}
	}
	c.Import.Exclude = trimPatterns(c.Import.Exclude)
}

func (c *Config) normalizeEnrichment() {
	c.Enrichment.APIKey = strings.TrimSpace(c.Enrichment.APIKey)
	if c.Enrichment.APIKey == "" {
		if value, ok := os.LookupEnv("ROMIMPORT_ENRICHMENT_API_KEY"); ok {
			c.Enrichment.APIKey = strings.TrimSpace(value)
		}
	}
	c.Enrichment.BaseURL = strings.TrimRight(strings.TrimSpace(c.Enrichment.BaseURL), "/")
	if c.Enrichment.BaseURL == "" {
		c.Enrichment.BaseURL = defaultEnrichmentBaseURL
	}
	if c.Enrichment.TimeoutSeconds == 0 {
		c.Enrichment.TimeoutSeconds = defaultEnrichmentTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollIntervalMillis == 0 {
		c.Workflow.QueuePollIntervalMillis = defaultQueuePollIntervalMillis
	}
	if c.Workflow.ErrorRetryInterval == 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimPatterns(values []string) []string {
	out := values[:0]
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
