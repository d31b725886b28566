package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/oklog/ulid/v2"

	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/observability"
)

const (
	defaultMaxViewers = 1024
	defaultIdleTTL    = 30 * time.Minute
)

// Registry holds one Navigator per viewer. Idle viewers expire and the least
// recently used are evicted once the registry is full.
type Registry struct {
	loader  Loader
	opts    []Option
	metrics *observability.Metrics

	mu    sync.Mutex
	cache *expirable.LRU[string, *Navigator]
}

// RegistryConfig sizes a Registry.
type RegistryConfig struct {
	MaxViewers int
	IdleTTL    time.Duration
	Metrics    *observability.Metrics
}

// NewRegistry returns a Registry whose navigators are built with opts.
func NewRegistry(loader Loader, cfg RegistryConfig, opts ...Option) *Registry {
	if cfg.MaxViewers <= 0 {
		cfg.MaxViewers = defaultMaxViewers
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	return &Registry{
		loader:  loader,
		opts:    opts,
		metrics: cfg.Metrics,
		cache:   expirable.NewLRU[string, *Navigator](cfg.MaxViewers, nil, cfg.IdleTTL),
	}
}

// NewViewerID mints an identifier for a new viewer.
func NewViewerID() string {
	return ulid.Make().String()
}

// touch returns the viewer's navigator and restarts its idle timer. The cache
// only sets expiry on Add, so a hit is added again. Callers hold r.mu.
func (r *Registry) touch(viewerID string) (*Navigator, bool) {
	nav, ok := r.cache.Get(viewerID)
	if ok {
		r.cache.Add(viewerID, nav)
	}
	return nav, ok
}

// Acquire returns the viewer's navigator, creating one for vp when the viewer
// is unknown or has expired. The boolean reports whether it was created.
func (r *Registry) Acquire(ctx context.Context, viewerID string, vp layout.Viewport) (*Navigator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nav, ok := r.touch(viewerID); ok {
		return nav, false
	}
	opts := append(append([]Option{}, r.opts...), WithViewport(vp))
	nav := New(ctx, r.loader, opts...)
	r.cache.Add(viewerID, nav)
	r.metrics.SetViewers(r.cache.Len())
	return nav, true
}

// Get returns the viewer's navigator if it is still live and counts as
// activity for the idle timer.
func (r *Registry) Get(viewerID string) (*Navigator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touch(viewerID)
}

// Remove forgets a viewer.
func (r *Registry) Remove(viewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(viewerID)
	r.metrics.SetViewers(r.cache.Len())
}

// Len returns the number of live viewers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

// ReloadAll refetches the data source for every live viewer.
func (r *Registry) ReloadAll(ctx context.Context) error {
	r.mu.Lock()
	live := make(map[string]*Navigator, r.cache.Len())
	for _, k := range r.cache.Keys() {
		if nav, ok := r.cache.Peek(k); ok {
			live[k] = nav
		}
	}
	r.mu.Unlock()

	var errs []error
	for id, nav := range live {
		if _, err := nav.Reload(ctx); err != nil {
			errs = append(errs, fmt.Errorf("viewer %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
