// Package navigator ties the strain tree components together: one Navigator
// per mounted tree loads its dataset, owns the disclosure state and turns each
// operation into a reconciled frame.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"finitefield.org/seed-web/internal/hierarchy"
	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/observability"
	"finitefield.org/seed-web/internal/reconcile"
	"finitefield.org/seed-web/internal/straindata"
)

const tracerScope = "finitefield.org/seed-web/internal/navigator"

// Operation names, used for metrics and spans.
const (
	OpInit        = "init"
	OpToggle      = "toggle"
	OpExpandAll   = "expand_all"
	OpCollapseAll = "collapse_all"
	OpResize      = "resize"
	OpReload      = "reload"
)

// Loader fetches datasets.
type Loader interface {
	Load(ctx context.Context, ref string) (*straindata.Dataset, error)
}

// Navigator is one visualizer instance. Operations are serialised.
type Navigator struct {
	opts    Options
	loader  Loader
	engine  layout.Engine
	logger  *zap.Logger
	metrics *observability.Metrics

	ready     chan struct{}
	readyOnce sync.Once

	mu       sync.Mutex
	viewport layout.Viewport
	dataset  *straindata.Dataset
	loadErr  error
	tree     *hierarchy.Tree
	driver   *reconcile.Driver
	frame    reconcile.Frame
	frameErr error
}

// New starts loading the dataset in the background and returns immediately.
// Current waits for the first frame.
func New(ctx context.Context, loader Loader, opts ...Option) *Navigator {
	s := settings{
		viewport: layout.Viewport{Width: DefaultWidth, Height: layout.DefaultHeight},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	n := &Navigator{
		opts:     s.opts.WithDefaults(),
		loader:   loader,
		engine:   s.engine,
		logger:   s.logger,
		metrics:  s.metrics,
		viewport: s.viewport.Normalize(),
		ready:    make(chan struct{}),
	}
	go n.initialize(context.WithoutCancel(ctx))
	return n
}

// Options returns the effective element ids and data source.
func (n *Navigator) Options() Options { return n.opts }

func (n *Navigator) initialize(ctx context.Context) {
	defer n.readyOnce.Do(func() { close(n.ready) })
	n.mu.Lock()
	defer n.mu.Unlock()
	n.load(ctx)
	n.frame, n.frameErr = n.rebuild(ctx, OpInit)
}

// load fetches the dataset. It reports false when the fetch was abandoned
// because ctx ended, in which case the previous dataset stays in place.
// Callers hold n.mu.
func (n *Navigator) load(ctx context.Context) bool {
	ds, err := n.loader.Load(ctx, n.opts.DataURL)
	if err != nil && ctx.Err() != nil {
		n.logger.Debug("navigator: load abandoned",
			zap.String("source", n.opts.DataURL),
			zap.Error(err),
		)
		return false
	}
	n.dataset, n.loadErr = ds, err
	if err != nil {
		n.logger.Warn("navigator: load failed",
			zap.String("kind", straindata.Kind(err)),
			zap.String("source", n.opts.DataURL),
			zap.Error(err),
		)
	}
	return true
}

// rebuild discards the tree and starts over with the default disclosure
// pattern. Callers hold n.mu.
func (n *Navigator) rebuild(ctx context.Context, op string) (reconcile.Frame, error) {
	var malformed *straindata.MalformedDataError
	switch {
	case n.dataset != nil:
		n.tree = n.dataset.Tree()
		n.driver = reconcile.NewDriver(n.dataset.Index)
	case errors.As(n.loadErr, &malformed):
		n.tree = hierarchy.Placeholder("")
		n.driver = reconcile.NewDriver(nil)
	default:
		n.tree, n.driver = nil, nil
		return n.errorFrame(LoadErrorMessage), n.loadErr
	}
	n.tree.ApplyDefault()
	n.tree.Root().Prev = n.viewport.Anchor()
	return n.update(ctx, n.tree.Root(), op)
}

// update lays out the tree and reconciles it anchored at source. Panics are
// converted to RenderError. Callers hold n.mu.
func (n *Navigator) update(ctx context.Context, source *hierarchy.Node, op string) (frame reconcile.Frame, err error) {
	n.metrics.ObserveOperation(op)
	_, span := observability.StartSpan(ctx, tracerScope, "navigator.update",
		attribute.String("navigator.op", op),
		attribute.Int("navigator.viewport.width", n.viewport.Width),
	)
	defer func() {
		if r := recover(); r != nil {
			err = &RenderError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			frame = n.errorFrame(RenderErrorMessage)
			n.logger.Error("navigator: render failed", zap.String("op", op), zap.Error(err))
		}
		observability.EndSpan(span, err)
	}()

	if n.viewport.Width <= 0 {
		return reconcile.Frame{}, &RenderError{Op: op, Err: ErrNoMountPoint}
	}
	start := time.Now()
	res := n.engine.Layout(n.tree, n.viewport)
	frame = n.driver.Reconcile(res, source, n.viewport)
	n.metrics.ObserveLayout(time.Since(start))
	span.SetAttributes(attribute.Int("navigator.visible_nodes", len(res.Nodes)))
	return frame, nil
}

func (n *Navigator) errorFrame(msg string) reconcile.Frame {
	vp := n.viewport.Normalize()
	return reconcile.Frame{
		Seq:      n.frame.Seq + 1,
		Viewport: vp,
		Margins:  vp.Margins(),
		Error:    msg,
		Description: straindata.Description{
			Text: straindata.FallbackText,
			Kind: straindata.DescriptionMissing,
		},
	}
}

func (n *Navigator) wait(ctx context.Context) error {
	select {
	case <-n.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Current returns the latest frame, waiting for the first one.
func (n *Navigator) Current(ctx context.Context) (reconcile.Frame, error) {
	if err := n.wait(ctx); err != nil {
		return reconcile.Frame{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frame, n.frameErr
}

// Ready reports whether the first frame exists.
func (n *Navigator) Ready() bool {
	select {
	case <-n.ready:
		return true
	default:
		return false
	}
}

// Viewport returns the viewport of the latest frame.
func (n *Navigator) Viewport() layout.Viewport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.viewport
}

// Describe returns the description for the node with the given id without
// changing any state.
func (n *Navigator) Describe(ctx context.Context, id int) (straindata.Description, error) {
	if err := n.wait(ctx); err != nil {
		return straindata.Description{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tree == nil {
		return straindata.Description{}, hierarchy.ErrUnknownNode
	}
	node, err := n.tree.Lookup(id)
	if err != nil {
		return straindata.Description{}, err
	}
	var idx *straindata.Index
	if n.dataset != nil {
		idx = n.dataset.Index
	}
	return idx.Describe(node.Name, node.Grouping), nil
}

// Toggle flips the node with the given id and reconciles anchored at it.
// Leaves and the root do not change, but the pass still runs so the node's
// description is published. Unknown ids return hierarchy.ErrUnknownNode.
func (n *Navigator) Toggle(ctx context.Context, id int) (reconcile.Frame, error) {
	return n.apply(ctx, OpToggle, func() (*hierarchy.Node, error) {
		node, err := n.tree.Lookup(id)
		if err != nil {
			return nil, err
		}
		n.tree.Toggle(node)
		return node, nil
	})
}

// ExpandAll expands every node and reconciles anchored at the root.
func (n *Navigator) ExpandAll(ctx context.Context) (reconcile.Frame, error) {
	return n.apply(ctx, OpExpandAll, func() (*hierarchy.Node, error) {
		n.tree.ExpandAll()
		return n.tree.Root(), nil
	})
}

// CollapseAll collapses every descendant of the root and reconciles anchored
// at the root.
func (n *Navigator) CollapseAll(ctx context.Context) (reconcile.Frame, error) {
	return n.apply(ctx, OpCollapseAll, func() (*hierarchy.Node, error) {
		n.tree.CollapseAll()
		return n.tree.Root(), nil
	})
}

func (n *Navigator) apply(ctx context.Context, op string, mutate func() (*hierarchy.Node, error)) (reconcile.Frame, error) {
	if err := n.wait(ctx); err != nil {
		return reconcile.Frame{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tree == nil {
		if op == OpToggle {
			return n.frame, hierarchy.ErrUnknownNode
		}
		return n.frame, n.frameErr
	}
	source, err := mutate()
	if err != nil {
		return n.frame, err
	}
	n.frame, n.frameErr = n.update(ctx, source, op)
	return n.frame, n.frameErr
}

// Resize reinitialises the tree for a new viewport. Disclosure state resets to
// the default pattern. A viewport equal to the current one is a no-op. When
// the last load failed the data source is fetched again first.
func (n *Navigator) Resize(ctx context.Context, vp layout.Viewport) (reconcile.Frame, error) {
	if err := n.wait(ctx); err != nil {
		return reconcile.Frame{}, err
	}
	vp = vp.Normalize()
	n.mu.Lock()
	defer n.mu.Unlock()
	if vp == n.viewport && n.frameErr == nil {
		return n.frame, nil
	}
	if n.loadErr != nil && !n.load(ctx) {
		return n.frame, ctx.Err()
	}
	n.viewport = vp
	n.frame, n.frameErr = n.rebuild(ctx, OpResize)
	return n.frame, n.frameErr
}

// Reload fetches the data source again and reinitialises the tree. A fetch
// cut short by ctx leaves the current tree untouched.
func (n *Navigator) Reload(ctx context.Context) (reconcile.Frame, error) {
	if err := n.wait(ctx); err != nil {
		return reconcile.Frame{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.load(ctx) {
		return n.frame, ctx.Err()
	}
	n.frame, n.frameErr = n.rebuild(ctx, OpReload)
	return n.frame, n.frameErr
}
