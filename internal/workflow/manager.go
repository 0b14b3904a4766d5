package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"romimport/internal/archive"
	"romimport/internal/config"
	"romimport/internal/enrichment"
	"romimport/internal/fileutil"
	"romimport/internal/grouping"
	"romimport/internal/identification"
	"romimport/internal/library"
	"romimport/internal/logging"
	"romimport/internal/queue"
	"romimport/internal/registry"
	"romimport/internal/statusbus"
)

// Manager coordinates queue processing against the library.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	library      *library.Store
	registry     *registry.Registry
	identifier   *identification.Service
	enricher     *enrichment.Service
	expander     *archive.Expander
	bus          *statusbus.Bus
	placeFile    func(src, dst string, move bool) error
	logger       *slog.Logger
	pollInterval time.Duration

	wake chan struct{}

	mu        sync.RWMutex
	running   bool
	paused    bool
	busy      bool
	gen       uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	current   int64
	cancelled map[int64]struct{}
	lastErr   error
	lastItem  *queue.Item

	queueActive bool
	queueStart  time.Time
}

// NewManager constructs a workflow manager. The registry defaults to the
// built-in system table, enrichment defaults to disabled and the bus to a
// fresh one.
func NewManager(cfg *config.Config, store *queue.Store, lib *library.Store, logger *slog.Logger, opts ...Option) *Manager {
	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	reg := options.registry
	if reg == nil {
		if options.identifier != nil {
			reg = registry.New(options.identifier.Snapshot())
		} else {
			reg = registry.New(registry.Builtin())
		}
	}
	identifier := options.identifier
	if identifier == nil {
		identifier = identification.New(reg.Snapshot(), options.hasher, options.table, identification.WithLogger(logger))
	}
	enricher := options.enricher
	if enricher == nil {
		enricher = enrichment.NewService(nil, cfg.EnrichmentTimeout(), logger)
	}
	bus := options.bus
	if bus == nil {
		bus = statusbus.New()
	}
	pollInterval := cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		library:      lib,
		registry:     reg,
		identifier:   identifier,
		enricher:     enricher,
		expander:     archive.NewExpander(archive.WithMaxBytes(cfg.Import.MaxExtractedBytes)),
		bus:          bus,
		placeFile:    fileutil.Place,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
		cancelled:    make(map[int64]struct{}),
	}
}

// Bus returns the status bus changes are published on.
func (m *Manager) Bus() *statusbus.Bus {
	return m.bus
}

// identity returns the identification service bound to the registry's
// current snapshot. A reload takes effect for the next item looked at.
func (m *Manager) identity() *identification.Service {
	snap := m.registry.Snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identifier.Snapshot() != snap {
		m.identifier = m.identifier.WithSnapshot(snap)
	}
	return m.identifier
}

// resolver builds a multi-file resolver that lets late tracks join sheets
// already imported from the queue.
func (m *Manager) resolver(ctx context.Context) *grouping.Resolver {
	r := grouping.NewResolver(nil)
	r.SheetSystem = func(sheetPath string) (string, bool) {
		sheet, err := m.store.GetByURL(ctx, sheetPath)
		if err != nil || sheet == nil {
			return "", false
		}
		if sheet.Status != queue.StatusSuccess || sheet.ResolvedSystem == "" || sheet.Duplicate {
			return "", false
		}
		return sheet.ResolvedSystem, true
	}
	return r
}

// notify wakes the worker without blocking.
func (m *Manager) notify() {
	m.mu.Lock()
	m.gen++
	if m.running && !m.paused {
		m.busy = true
	}
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
