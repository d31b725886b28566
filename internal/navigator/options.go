package navigator

import (
	"strings"

	"go.uber.org/zap"

	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/observability"
)

const (
	DefaultTreeElementID       = "genetics-tree"
	DefaultStrainDescriptionID = "strain-description"
	DefaultExpandAllID         = "expand-all"
	DefaultCollapseAllID       = "collapse-all"
	DefaultDataURL             = "data/straindata.json"
	DefaultWidth               = 960
)

// Options are the recognised construction settings. Empty values fall back
// to the defaults above.
type Options struct {
	TreeElementID       string `json:"treeElementId" yaml:"treeElementId"`
	StrainDescriptionID string `json:"strainDescriptionId" yaml:"strainDescriptionId"`
	ExpandAllID         string `json:"expandAllId" yaml:"expandAllId"`
	CollapseAllID       string `json:"collapseAllId" yaml:"collapseAllId"`
	DataURL             string `json:"dataUrl" yaml:"dataUrl"`
}

// WithDefaults fills every empty field.
func (o Options) WithDefaults() Options {
	o.TreeElementID = orDefault(o.TreeElementID, DefaultTreeElementID)
	o.StrainDescriptionID = orDefault(o.StrainDescriptionID, DefaultStrainDescriptionID)
	o.ExpandAllID = orDefault(o.ExpandAllID, DefaultExpandAllID)
	o.CollapseAllID = orDefault(o.CollapseAllID, DefaultCollapseAllID)
	o.DataURL = orDefault(o.DataURL, DefaultDataURL)
	return o
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

type settings struct {
	opts     Options
	viewport layout.Viewport
	engine   layout.Engine
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// Option customises a Navigator.
type Option func(*settings)

// WithOptions sets the element ids and data source.
func WithOptions(o Options) Option {
	return func(s *settings) {
		s.opts = o
	}
}

// WithDataURL overrides only the data source.
func WithDataURL(ref string) Option {
	return func(s *settings) {
		s.opts.DataURL = ref
	}
}

// WithViewport sets the initial viewport.
func WithViewport(vp layout.Viewport) Option {
	return func(s *settings) {
		s.viewport = vp
	}
}

// WithLevelSpacing overrides the depth spacing.
func WithLevelSpacing(spacing float64) Option {
	return func(s *settings) {
		s.engine.LevelSpacing = spacing
	}
}

// WithLogger sets the logger errors are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records operation counters and layout timings.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}
