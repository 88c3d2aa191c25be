// Package service is the API façade over the provisioning core. Every
// operation returns an explicit response struct with OK and Err; rate
// limiting happens here, before any work is attempted.
package service

import (
	"context"
	"time"

	"github.com/roach88/eventbook/internal/config"
	"github.com/roach88/eventbook/internal/geo"
	"github.com/roach88/eventbook/internal/guard"
	"github.com/roach88/eventbook/internal/index"
	"github.com/roach88/eventbook/internal/links"
	"github.com/roach88/eventbook/internal/provision"
	"github.com/roach88/eventbook/internal/record"
	"github.com/roach88/eventbook/internal/schema"
	"github.com/roach88/eventbook/internal/store"
	"github.com/roach88/eventbook/internal/workbook"
)

// DefaultCallerScope identifies the local CLI caller for rate limiting.
const DefaultCallerScope = "local"

// Service exposes the provisioning operations.
type Service struct {
	store *store.Store
	cache *index.Cache
	guard *guard.Guard
	prov  *provision.Provisioner
	scope string
}

type options struct {
	factory provision.ResourceFactory
	links   provision.LinkGenerator
	geo     provision.GeoEnricher
	ids     provision.IDGenerator
	now     func() time.Time
	scope   string
}

// Option swaps a collaborator. Tests use these for determinism.
type Option func(*options)

// WithResourceFactory replaces the default workbook factory.
func WithResourceFactory(f provision.ResourceFactory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithLinkGenerator replaces the default link generator.
func WithLinkGenerator(g provision.LinkGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.links = g
		}
	}
}

// WithGeoEnricher replaces the default geo enricher.
func WithGeoEnricher(g provision.GeoEnricher) Option {
	return func(o *options) {
		if g != nil {
			o.geo = g
		}
	}
}

// WithIDGenerator replaces the record ID source.
func WithIDGenerator(g provision.IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithClock replaces the clock used for validation windows and rate
// limiting.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithCallerScope sets the rate-limit scope attributed to this caller.
func WithCallerScope(scope string) Option {
	return func(o *options) {
		if scope != "" {
			o.scope = scope
		}
	}
}

// New assembles a Service over an already-reconciled control store.
func New(cfg config.Config, st *store.Store, opts ...Option) *Service {
	o := options{
		now:   time.Now,
		scope: DefaultCallerScope,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.factory == nil {
		o.factory = workbook.New(cfg.WorkbooksDir())
	}
	if o.links == nil {
		l := cfg.Links.Resolve()
		o.links = links.New(links.Bases{
			Admin:   l.AdminBase,
			Public:  l.PublicBase,
			Display: l.DisplayBase,
		})
	}
	if o.geo == nil {
		o.geo = geo.New()
	}

	limiter := guard.NewLimiter(map[string]guard.Rule{
		guard.ClassCreate: {Max: cfg.Limits.CreateMax, Window: cfg.Limits.CreateWindow},
		guard.ClassRead:   {Max: cfg.Limits.ReadMax, Window: cfg.Limits.ReadWindow},
	}, guard.WithNow(o.now))
	g := guard.New(
		guard.WithLockTimeout(cfg.LockTimeout),
		guard.WithLimiter(limiter),
	)

	cache := index.NewCache(st)

	provOpts := []provision.Option{
		provision.WithClock(o.now),
		provision.WithGeoEnricher(o.geo),
	}
	if o.ids != nil {
		provOpts = append(provOpts, provision.WithIDGenerator(o.ids))
	}
	prov := provision.New(st, cache, g, o.factory, o.links, provOpts...)

	return &Service{
		store: st,
		cache: cache,
		guard: g,
		prov:  prov,
		scope: o.scope,
	}
}

// Bootstrap compiles the store spec, reconciles the control store and
// assembles a Service. The outcome reports how the store was obtained.
func Bootstrap(ctx context.Context, cfg config.Config, opts ...Option) (*Service, schema.Outcome, error) {
	spec, err := loadSpec(cfg)
	if err != nil {
		return nil, schema.Outcome{}, err
	}

	st, outcome, err := schema.NewReconciler(cfg.DataDir).EnsureStore(ctx, spec)
	if err != nil {
		return nil, schema.Outcome{}, err
	}

	return New(cfg, st, opts...), outcome, nil
}

// Close releases the control store.
func (s *Service) Close() error {
	return s.store.Close()
}

func loadSpec(cfg config.Config) (record.StoreSpec, error) {
	if cfg.SpecPath != "" {
		return schema.LoadSpecFile(cfg.SpecPath)
	}
	return schema.DefaultSpec()
}
