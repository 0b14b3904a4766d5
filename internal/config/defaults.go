package config

const (
	defaultConfigPath                    = "~/.config/romimport/config.toml"
	defaultLibraryDir                    = "~/roms"
	defaultStagingDir                    = "~/.local/share/romimport/staging"
	defaultStateDir                      = "~/.local/share/romimport"
	defaultLogDir                        = "~/.local/share/romimport/logs"
	defaultDatDir                        = "~/.config/romimport/dats"
	defaultMaxArchiveDepth               = 3
	defaultMaxExtractedBytes       int64 = 8 << 30
	defaultEnrichmentBaseURL             = "https://api.romimport.dev/v1"
	defaultEnrichmentTimeout             = 10
	defaultEnrichmentRetries             = 3
	defaultQueuePollIntervalMillis       = 500
	defaultErrorRetryInterval            = 5
	defaultLogFormat                     = "console"
	defaultLogLevel                      = "info"
)

var defaultExclude = []string{
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/__MACOSX/**",
	"**/.*",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			DatDir:     defaultDatDir,
		},
		Import: Import{
			MaxArchiveDepth:   defaultMaxArchiveDepth,
			MaxExtractedBytes: defaultMaxExtractedBytes,
			Include:           []string{"**/*"},
			Exclude:           append([]string(nil), defaultExclude...),
		},
		Enrichment: Enrichment{
			Enabled:        false,
			BaseURL:        defaultEnrichmentBaseURL,
			TimeoutSeconds: defaultEnrichmentTimeout,
			Retries:        defaultEnrichmentRetries,
		},
		Workflow: Workflow{
			QueuePollIntervalMillis: defaultQueuePollIntervalMillis,
			ErrorRetryInterval:      defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
