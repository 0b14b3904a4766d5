package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"

	"romimport/internal/logging"
	"romimport/internal/services"
)

// runPreflightChecks verifies the directories the worker writes into before
// any item is taken. It is the only failure allowed to stop the pipeline.
func (m *Manager) runPreflightChecks(ctx context.Context) error {
	if m.store == nil || m.library == nil {
		return services.Wrap(services.ErrConfiguration, "preflight", "stores", "queue and library stores are required", nil)
	}
	checks := []struct {
		name string
		dir  string
	}{
		{name: "library_dir", dir: m.cfg.Paths.LibraryDir},
		{name: "staging_dir", dir: m.cfg.Paths.StagingDir},
	}
	var failures []string
	for _, check := range checks {
		if err := ensureWritable(check.dir); err != nil {
			m.logger.ErrorContext(ctx, "preflight check failed",
				logging.String("check", check.name),
				logging.String("detail", err.Error()),
				logging.String(logging.FieldEventType, "preflight_failed"),
				logging.String(logging.FieldErrorHint, "fix the directory permissions and start again"),
			)
			failures = append(failures, fmt.Sprintf("%s: %v", check.name, err))
			continue
		}
		m.logger.DebugContext(ctx, "preflight check passed",
			logging.String("check", check.name),
			logging.String("detail", check.dir),
		)
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "preflight", "directories", strings.Join(failures, "; "), nil)
	}
	return nil
}

func ensureWritable(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".romimport-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
