package workflow

import (
	"romimport/internal/enrichment"
	"romimport/internal/hashing"
	"romimport/internal/identification"
	"romimport/internal/registry"
	"romimport/internal/statusbus"
)

// Option configures optional Manager dependencies.
type Option func(*managerOptions)

type managerOptions struct {
	registry   *registry.Registry
	identifier *identification.Service
	hasher     hashing.Provider
	table      identification.DigestTable
	enricher   *enrichment.Service
	bus        *statusbus.Bus
}

// WithRegistry sets the system registry. Each item is identified against
// the snapshot current when it starts.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *managerOptions) { o.registry = reg }
}

// WithIdentifier replaces the identification service outright.
func WithIdentifier(svc *identification.Service) Option {
	return func(o *managerOptions) { o.identifier = svc }
}

// WithHasher sets the digest provider used by the default identifier.
func WithHasher(hasher hashing.Provider) Option {
	return func(o *managerOptions) { o.hasher = hasher }
}

// WithDigestTable sets the reference digest table used by the default
// identifier.
func WithDigestTable(table identification.DigestTable) Option {
	return func(o *managerOptions) { o.table = table }
}

// WithEnricher sets the enrichment service.
func WithEnricher(svc *enrichment.Service) Option {
	return func(o *managerOptions) { o.enricher = svc }
}

// WithBus publishes status changes on bus instead of a private one.
func WithBus(bus *statusbus.Bus) Option {
	return func(o *managerOptions) { o.bus = bus }
}
