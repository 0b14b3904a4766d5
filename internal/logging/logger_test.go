package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"romimport/internal/config"
	"romimport/internal/logging"
	"romimport/internal/services"
)

func noColor() *bool {
	v := false
	return &v
}

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	require.NoError(t, err)
	logger.Info("hello", logging.String("system", "nes"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	require.Equal(t, "hello", record["msg"])
	require.Equal(t, "nes", record["system"])
	require.Equal(t, "info", record["level"])
	require.Contains(t, record, "ts")
}

func TestConsoleLoggerHoistsComponentAndOmitsSourceAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Console: &buf, Color: noColor()})
	require.NoError(t, err)

	logging.NewComponentLogger(logger, "workflow").Info("item imported", logging.Int64("item_id", 4))
	line := buf.String()
	require.Contains(t, line, "workflow: item imported")
	require.Contains(t, line, "item_id=4")
	require.NotContains(t, line, ".go:")
	require.NotContains(t, line, "\x1b[")
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", Console: &buf, Color: noColor()})
	require.NoError(t, err)

	logger.Debug("caller check")
	require.Contains(t, buf.String(), "logger_test.go:")
}

func TestConsoleLoggerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Console: &buf, Color: noColor()})
	require.NoError(t, err)

	logger.Info("placed", logging.String("title", "Super Mario Bros. 3"), logging.Group("dest", logging.String("dir", "nes")))
	require.Contains(t, buf.String(), `title="Super Mario Bros. 3"`)
	require.Contains(t, buf.String(), "dest.dir=nes")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	require.Error(t, err)
}

func TestFileKeepsInfoWhenConsoleIsQuiet(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", logging.LogFileName)
	logger, err := logging.New(logging.Options{Level: "error", Format: "json", Console: &console, FilePath: path})
	require.NoError(t, err)

	logger.Info("item finished", logging.String(logging.FieldSystem, "nes"))
	logger.Debug("noise")

	require.Empty(t, console.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"item finished"`)
	require.NotContains(t, string(data), "noise")
}

func TestWithContextAddsStandardFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf})
	require.NoError(t, err)

	ctx := services.WithItem(context.Background(), 42, "/in/Game.sfc", "req-1")
	ctx = services.WithStage(ctx, "identify")
	logging.WithContext(ctx, logger).Info("step")

	out := buf.String()
	require.Contains(t, out, `"item_id":42`)
	require.Contains(t, out, `"url":"/in/Game.sfc"`)
	require.Contains(t, out, `"stage":"identify"`)
	require.Contains(t, out, `"correlation_id":"req-1"`)
}

func TestErrorAttrsClassifiesFailure(t *testing.T) {
	err := services.Wrap(services.ErrNoSystemMatched, "identify", "determine systems", "no candidates", nil)
	attrs := logging.ErrorAttrs(err)
	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, a.Key)
		if a.Key == logging.FieldErrorKind {
			require.Equal(t, "no_system_matched", a.Value.String())
		}
	}
	require.Equal(t, "error,error_kind,error_hint", strings.Join(keys, ","))
	require.Nil(t, logging.ErrorAttrs(nil))
}
