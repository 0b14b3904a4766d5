package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"romimport/internal/config"
	"romimport/internal/datfile"
	"romimport/internal/logging"
	"romimport/internal/services"
	"romimport/internal/textutil"
)

const (
	stageName      = "enrich"
	defaultTimeout = 10 * time.Second
)

// Service bounds, deduplicates and caches provider lookups.
type Service struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*Result
}

// NewService wraps provider. A nil provider yields a service that never
// matches.
func NewService(provider Provider, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		provider: provider,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "enrichment"),
		cache:    make(map[string]*Result),
	}
}

// NewFromConfig assembles the provider chain: the HTTP service when enabled,
// then the DAT index when one is loaded.
func NewFromConfig(cfg *config.Config, index *datfile.Index, logger *slog.Logger) (*Service, error) {
	var chain Chain
	if cfg != nil && cfg.Enrichment.Enabled {
		client, err := NewHTTPClient(cfg.Enrichment.BaseURL, cfg.Enrichment.APIKey,
			WithRetries(cfg.Enrichment.Retries),
			WithClientLogger(logger),
		)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, stageName, "client", "", err)
		}
		chain = append(chain, client)
	}
	if index != nil && index.Len() > 0 {
		chain = append(chain, NewDatProvider(index))
	}
	var timeout time.Duration
	if cfg != nil {
		timeout = cfg.EnrichmentTimeout()
	}
	if len(chain) == 0 {
		return NewService(nil, timeout, logger), nil
	}
	return NewService(chain, timeout, logger), nil
}

// Enabled reports whether any provider is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.provider != nil
}

// Enrich looks up metadata by digest first and by title second. A nil result
// with a nil error means nothing matched. Failures and timeouts come back
// tagged ErrLookupFailed; callers treat them as non-fatal.
func (s *Service) Enrich(ctx context.Context, system, md5, title string) (*Result, error) {
	if !s.Enabled() {
		return nil, nil
	}
	md5 = strings.ToUpper(strings.TrimSpace(md5))
	title = textutil.StripTags(title)
	key := cacheKey(system, md5, title)
	if key == "" {
		return nil, nil
	}

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	value, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.lookup(ctx, system, md5, title)
	})
	if err != nil {
		return nil, err
	}
	res, _ := value.(*Result)
	if shared {
		logging.WithContext(ctx, s.logger).Debug("enrichment lookup shared", logging.String("key", key))
	}
	return res, nil
}

func (s *Service) lookup(ctx context.Context, system, md5, title string) (*Result, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	logger := logging.WithContext(ctx, s.logger)

	started := time.Now()
	var (
		res *Result
		err error
	)
	if md5 != "" {
		res, err = s.provider.LookupDigest(lookupCtx, md5)
	}
	if res == nil && err == nil && title != "" {
		res, err = s.provider.LookupTitle(lookupCtx, system, title)
	}
	if err == nil && lookupCtx.Err() != nil {
		err = lookupCtx.Err()
	}
	if err != nil {
		message := "provider error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			message = "timed out after " + s.timeout.String()
		}
		logger.Warn("enrichment lookup failed",
			logging.String("system", system),
			logging.String("md5", md5),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		return nil, services.Wrap(services.ErrLookupFailed, stageName, "lookup", message, err)
	}

	s.mu.Lock()
	s.cache[cacheKey(system, md5, title)] = res
	s.mu.Unlock()
	logger.Debug("enrichment lookup complete",
		logging.String("system", system),
		logging.Bool("matched", res != nil),
		logging.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

// cacheKey prefers the digest; title lookups are keyed per system.
func cacheKey(system, md5, title string) string {
	if md5 != "" {
		return "md5:" + md5
	}
	normalized := textutil.NormalizeTitle(title)
	if normalized == "" {
		return ""
	}
	return "title:" + system + ":" + normalized
}
