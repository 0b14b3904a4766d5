package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"romimport/internal/config"
	"romimport/internal/datfile"
	"romimport/internal/enrichment"
	"romimport/internal/identification"
	"romimport/internal/library"
	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/registry"
	"romimport/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runtime bundles everything a command needs to talk to the queue and the
// library. Fields a command did not ask for stay nil.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	index    *datfile.Index
	store    *queue.Store
	library  *library.Store
	manager  *workflow.Manager
}

type runtimeNeeds int

const (
	needQueue runtimeNeeds = 1 << iota
	needLibrary
)

// openRuntime loads the registry and DAT index and opens the stores named in
// needs. The library store holds an exclusive lock, so read-only queue
// commands leave it closed.
func (c *commandContext) openRuntime(ctx context.Context, cmd *cobra.Command, needs runtimeNeeds) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newCommandLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}

	rt.registry, err = registry.Load(cfg.Paths.RegistryFile)
	if err != nil {
		return nil, fmt.Errorf("load system registry: %w", err)
	}
	rt.index, err = datfile.LoadDir(ctx, cfg.Paths.DatDir, rt.registry.Snapshot(), logger)
	if err != nil {
		return nil, fmt.Errorf("load dat files: %w", err)
	}
	if needs == 0 {
		return rt, nil
	}

	rt.store, err = queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	if needs&needLibrary != 0 {
		rt.library, err = library.Open(cfg)
		if err != nil {
			rt.Close()
			if errors.Is(err, library.ErrLocked) {
				return nil, fmt.Errorf("library %s is in use by another romimport process", cfg.Paths.LibraryDir)
			}
			return nil, fmt.Errorf("open library: %w", err)
		}
	}

	enricher, err := enrichment.NewFromConfig(cfg, rt.index, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.manager = workflow.NewManager(cfg, rt.store, rt.library, logger,
		workflow.WithRegistry(rt.registry),
		workflow.WithDigestTable(rt.index),
		workflow.WithEnricher(enricher),
	)
	return rt, nil
}

// identifier builds a side-effect free identification service.
func (rt *runtime) identifier() *identification.Service {
	return identification.New(rt.registry.Snapshot(), nil, rt.index, identification.WithLogger(rt.logger))
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.manager != nil {
		rt.manager.Stop()
	}
	if rt.library != nil {
		_ = rt.library.Close()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

func (c *commandContext) withRuntime(cmd *cobra.Command, needs runtimeNeeds, fn func(*runtime) error) error {
	rt, err := c.openRuntime(cmd.Context(), cmd, needs)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// newCommandLogger sends console logs to stderr so tables on stdout stay
// clean. The JSON log file under log_dir receives everything.
func newCommandLogger(cfg *config.Config, console io.Writer) (*slog.Logger, error) {
	opts := logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: console,
	}
	if cfg.Paths.LogDir != "" {
		opts.FilePath = filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	}
	return logging.New(opts)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
