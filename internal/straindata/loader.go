// Package straindata loads strain datasets: a nested strainTree plus a flat
// list of descriptions. Sources are http(s) URLs, gs:// objects or files.
package straindata

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"finitefield.org/seed-web/internal/observability"
)

const (
	defaultCacheTTL     = 5 * time.Minute
	defaultFetchTimeout = 8 * time.Second
	tracerScope         = "finitefield.org/seed-web/internal/straindata"
)

// Loader fetches datasets, caching successes per reference.
type Loader struct {
	http    *http.Client
	objects ObjectOpener
	gcs     *gcsOpener
	dataDir string
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *observability.Metrics

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	dataset *Dataset
	expires time.Time
}

// Option customises a Loader.
type Option func(*Loader)

// WithHTTPClient overrides the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.http = c
		}
	}
}

// WithFetchTimeout sets the http client timeout. Zero disables it.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d >= 0 {
			l.http = &http.Client{Timeout: d}
		}
	}
}

// WithObjectOpener overrides the gs:// reader.
func WithObjectOpener(o ObjectOpener) Option {
	return func(l *Loader) {
		if o != nil {
			l.objects = o
		}
	}
}

// WithDataDir sets the directory relative file references resolve against.
func WithDataDir(dir string) Option {
	return func(l *Loader) {
		l.dataDir = strings.TrimSpace(dir)
	}
}

// WithCacheTTL sets how long successful loads are reused. Zero disables the
// cache.
func WithCacheTTL(d time.Duration) Option {
	return func(l *Loader) {
		if d >= 0 {
			l.ttl = d
		}
	}
}

// WithClock injects a clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records load counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// NewLoader builds a Loader.
func NewLoader(opts ...Option) *Loader {
	gcs := &gcsOpener{}
	l := &Loader{
		http:    &http.Client{Timeout: defaultFetchTimeout},
		objects: gcs,
		gcs:     gcs,
		dataDir: ".",
		ttl:     defaultCacheTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Close releases the Cloud Storage client if one was created.
func (l *Loader) Close() error {
	return l.gcs.Close()
}

// Load returns the dataset behind ref. Concurrent loads of the same reference
// share one fetch. Failures are returned as *FetchError or
// *MalformedDataError and are never cached.
func (l *Loader) Load(ctx context.Context, ref string) (*Dataset, error) {
	parsed, err := ParseReference(ref, l.dataDir)
	if err != nil {
		l.metrics.ObserveLoad("unknown", Kind(err))
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, tracerScope, "straindata.Load",
		attribute.String("straindata.scheme", string(parsed.Scheme)),
		attribute.String("straindata.source", parsed.Raw),
	)

	if ds, ok := l.cached(parsed.Key()); ok {
		span.SetAttributes(attribute.Bool("straindata.cache_hit", true))
		observability.EndSpan(span, nil)
		l.metrics.ObserveLoad(string(parsed.Scheme), "cache_hit")
		return ds, nil
	}

	ch := l.group.DoChan(parsed.Key(), func() (any, error) {
		return l.loadUncached(context.WithoutCancel(ctx), parsed)
	})
	select {
	case <-ctx.Done():
		observability.EndSpan(span, ctx.Err())
		return nil, &FetchError{Source: parsed.Raw, Err: ctx.Err()}
	case res := <-ch:
		observability.EndSpan(span, res.Err)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	}
}

func (l *Loader) loadUncached(ctx context.Context, ref Reference) (*Dataset, error) {
	start := l.now()
	body, err := l.fetch(ctx, ref)
	var ds *Dataset
	if err == nil {
		ds, err = Decode(ref.Raw, body.body, DetectFormat(ref.Location, body.contentType))
	}
	l.metrics.ObserveLoad(string(ref.Scheme), Kind(err))
	if err != nil {
		l.logger.Debug("straindata: load failed",
			zap.String("source", ref.Raw),
			zap.String("kind", Kind(err)),
			zap.Error(err),
		)
		return nil, err
	}
	l.store(ref.Key(), ds)
	l.logger.Debug("straindata: loaded",
		zap.String("source", ref.Raw),
		zap.Int("descriptions", ds.Index.Len()),
		zap.Duration("elapsed", l.now().Sub(start)),
	)
	return ds, nil
}

// Invalidate drops the cached dataset for ref so the next Load fetches again.
func (l *Loader) Invalidate(ref string) {
	parsed, err := ParseReference(ref, l.dataDir)
	if err != nil {
		return
	}
	l.mu.Lock()
	delete(l.cache, parsed.Key())
	l.mu.Unlock()
	l.group.Forget(parsed.Key())
}

// Resolve reports how ref would be read, without fetching it.
func (l *Loader) Resolve(ref string) (Reference, error) {
	return ParseReference(ref, l.dataDir)
}

func (l *Loader) cached(key string) (*Dataset, bool) {
	if l.ttl <= 0 {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.cache[key]
	if !ok || !l.now().Before(entry.expires) {
		return nil, false
	}
	return entry.dataset, true
}

func (l *Loader) store(key string, ds *Dataset) {
	if l.ttl <= 0 {
		return
	}
	l.mu.Lock()
	l.cache[key] = cacheEntry{dataset: ds, expires: l.now().Add(l.ttl)}
	l.mu.Unlock()
}
