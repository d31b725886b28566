package navigator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/seed-web/internal/hierarchy"
	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/reconcile"
	"finitefield.org/seed-web/internal/straindata"
)

const brokkrJSON = `{
  "strainTree": {
    "name": "Brokkr Genetics",
    "children": [
      {"name": "Anvil Series", "children": [
        {"name": "Iron Kush", "children": [
          {"name": "Iron Kush #2", "children": [{"name": "Rust"}]},
          {"name": "Slag"}
        ]},
        {"name": "Hammer"}
      ]},
      {"name": "Forge Collection", "children": [
        {"name": "Bellows", "children": [{"name": "Ember"}, {"name": "Ash"}]}
      ]},
      {"name": "Heirloom Treasures"}
    ]
  },
  "strains": [
    {"name": "Hammer", "description": "Dense and **resinous**."},
    {"name": "Iron Kush", "description": "Earthy and heavy."}
  ]
}`

func mustDataset(t *testing.T, payload string) *straindata.Dataset {
	t.Helper()
	ds, err := straindata.Decode("test", []byte(payload), straindata.FormatJSON)
	require.NoError(t, err)
	return ds
}

type loadResult struct {
	ds  *straindata.Dataset
	err error
}

type fakeLoader struct {
	gate chan struct{}

	mu      sync.Mutex
	calls   int
	refs    []string
	results []loadResult
}

func newFakeLoader(results ...loadResult) *fakeLoader {
	return &fakeLoader{results: results}
}

func (f *fakeLoader) Load(ctx context.Context, ref string) (*straindata.Dataset, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	r := f.results[i]
	return r.ds, r.err
}

func (f *fakeLoader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func visibleNames(frame reconcile.Frame) []string {
	var out []string
	for _, n := range frame.Visible() {
		out = append(out, n.Name)
	}
	return out
}

func nodeID(t *testing.T, frame reconcile.Frame, name string) int {
	t.Helper()
	for _, n := range frame.Visible() {
		if n.Name == name {
			return n.ID
		}
	}
	require.Failf(t, "node not visible", "%s", name)
	return 0
}

func current(t *testing.T, nav *Navigator) reconcile.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	frame, err := nav.Current(ctx)
	require.NoError(t, err)
	return frame
}

func TestNewPublishesDefaultFrame(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	loader := newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)})
	nav := New(context.Background(), loader)
	frame := current(t, nav)

	assert.Equal(t, []string{
		"Brokkr Genetics",
		"Anvil Series", "Iron Kush", "Hammer",
		"Forge Collection", "Bellows",
		"Heirloom Treasures",
	}, visibleNames(frame))
	for _, n := range frame.Nodes {
		assert.Equal(t, reconcile.PhaseEnter, n.Phase, n.Name)
		assert.Equal(t, hierarchy.Point{X: 0, Y: 175}, n.From, n.Name)
	}
	assert.Equal(t, straindata.DescriptionCollection, frame.Description.Kind)
	assert.Empty(t, frame.Error)
	assert.Equal(t, []string{DefaultDataURL}, loader.refs)
	assert.True(t, nav.Ready())
	assert.Equal(t, Options{
		TreeElementID:       "genetics-tree",
		StrainDescriptionID: "strain-description",
		ExpandAllID:         "expand-all",
		CollapseAllID:       "collapse-all",
		DataURL:             "data/straindata.json",
	}, nav.Options())
}

func TestToggleRevealsAndHidesChildren(t *testing.T) {
	nav := New(context.Background(), newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)}))
	frame := current(t, nav)
	ironKush := nodeID(t, frame, "Iron Kush")

	frame, err := nav.Toggle(context.Background(), ironKush)
	require.NoError(t, err)
	assert.Contains(t, visibleNames(frame), "Iron Kush #2")
	assert.Contains(t, visibleNames(frame), "Slag")
	assert.NotContains(t, visibleNames(frame), "Rust")
	assert.Equal(t, ironKush, frame.AnchorID)
	assert.Equal(t, straindata.DescriptionFound, frame.Description.Kind)
	assert.Equal(t, "Earthy and heavy.", frame.Description.Text)

	frame, err = nav.Toggle(context.Background(), ironKush)
	require.NoError(t, err)
	var exiting []string
	for _, n := range frame.Nodes {
		if n.Phase == reconcile.PhaseExit {
			exiting = append(exiting, n.Name)
		}
	}
	assert.ElementsMatch(t, []string{"Iron Kush #2", "Slag"}, exiting)
	assert.Len(t, frame.Visible(), 7)
}

func TestToggleLeafPublishesDescription(t *testing.T) {
	nav := New(context.Background(), newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)}))
	frame := current(t, nav)

	frame, err := nav.Toggle(context.Background(), nodeID(t, frame, "Hammer"))
	require.NoError(t, err)
	assert.Equal(t, straindata.Description{
		Name: "Hammer",
		Text: "Dense and **resinous**.",
		Kind: straindata.DescriptionFound,
	}, frame.Description)
	assert.Len(t, frame.Visible(), 7)

	frame, err = nav.Toggle(context.Background(), nodeID(t, frame, "Heirloom Treasures"))
	require.NoError(t, err)
	assert.Equal(t, straindata.DescriptionMissing, frame.Description.Kind)
	assert.Equal(t, straindata.FallbackText, frame.Description.Text)
}

func TestToggleUnknownNode(t *testing.T) {
	nav := New(context.Background(), newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)}))
	before := current(t, nav)

	frame, err := nav.Toggle(context.Background(), 9999)
	require.ErrorIs(t, err, hierarchy.ErrUnknownNode)
	assert.Equal(t, before.Seq, frame.Seq)
}

func TestExpandAndCollapseAll(t *testing.T) {
	nav := New(context.Background(), newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)}))
	root := current(t, nav).Nodes[0].ID

	frame, err := nav.ExpandAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, frame.Visible(), 12)
	assert.Equal(t, root, frame.AnchorID)

	frame, err = nav.CollapseAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Brokkr Genetics", "Anvil Series", "Forge Collection", "Heirloom Treasures"}, visibleNames(frame))
	for _, n := range frame.Visible()[1:] {
		if n.Name != "Heirloom Treasures" {
			assert.True(t, n.Collapsed(), n.Name)
		}
	}

	again, err := nav.CollapseAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, visibleNames(frame), visibleNames(again))
	for _, n := range again.Nodes {
		assert.Equal(t, reconcile.PhaseUpdate, n.Phase)
	}
}

func TestResizeReinitialises(t *testing.T) {
	nav := New(context.Background(), newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)}))
	first := current(t, nav)

	same, err := nav.Resize(context.Background(), layout.Viewport{Width: DefaultWidth})
	require.NoError(t, err)
	assert.Equal(t, first.Seq, same.Seq)

	_, err = nav.ExpandAll(context.Background())
	require.NoError(t, err)

	frame, err := nav.Resize(context.Background(), layout.Viewport{Width: 500, Height: 400})
	require.NoError(t, err)
	assert.Len(t, frame.Visible(), 7, "disclosure resets to the default pattern")
	assert.Equal(t, layout.Margins{Top: 20, Right: 20, Bottom: 20, Left: 20}, frame.Margins)
	for _, n := range frame.Nodes {
		assert.Equal(t, reconcile.PhaseEnter, n.Phase)
		assert.Equal(t, hierarchy.Point{X: -100, Y: 200}, n.From)
	}
	assert.Equal(t, layout.Viewport{Width: 500, Height: 400}, nav.Viewport())
}

func TestZeroWidthIsRenderError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	nav := New(context.Background(),
		newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)}),
		WithViewport(layout.Viewport{Width: 0, Height: 350}),
		WithLogger(zap.New(core)),
	)
	frame, err := nav.Current(context.Background())

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.ErrorIs(t, err, ErrNoMountPoint)
	assert.Equal(t, OpInit, renderErr.Op)
	assert.Equal(t, RenderErrorMessage, frame.Error)
	assert.Empty(t, frame.Nodes)
	assert.Equal(t, 1, logs.FilterMessage("navigator: render failed").Len())
}

func TestFetchErrorShowsInlineMessage(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fetchErr := &straindata.FetchError{Source: "data/straindata.json", Status: 404}
	nav := New(context.Background(),
		newFakeLoader(loadResult{err: fetchErr}),
		WithLogger(zap.New(core)),
	)

	frame, err := nav.Current(context.Background())
	var got *straindata.FetchError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, LoadErrorMessage, frame.Error)
	assert.Empty(t, frame.Nodes)
	assert.Empty(t, frame.Edges)

	_, err = nav.Toggle(context.Background(), 1)
	assert.ErrorIs(t, err, hierarchy.ErrUnknownNode)
	frame, err = nav.ExpandAll(context.Background())
	assert.ErrorAs(t, err, &got)
	assert.Equal(t, LoadErrorMessage, frame.Error)

	entries := logs.FilterMessage("navigator: load failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "fetch_error", entries[0].ContextMap()["kind"])
}

func TestMalformedDataShowsPlaceholder(t *testing.T) {
	malformed := &straindata.MalformedDataError{Source: "x", Reason: "strainTree has no name"}
	nav := New(context.Background(), newFakeLoader(loadResult{err: malformed}))

	frame, err := nav.Current(context.Background())
	require.NoError(t, err)
	assert.Empty(t, frame.Error)
	assert.Equal(t, []string{"Error"}, visibleNames(frame))
	assert.Empty(t, frame.Edges)
	assert.Equal(t, straindata.DescriptionMissing, frame.Description.Kind)
}

func TestReloadPicksUpNewData(t *testing.T) {
	updated := `{"strainTree": {"name": "Brokkr Genetics", "children": [{"name": "Anvil Series"}]}, "strains": []}`
	loader := newFakeLoader(
		loadResult{ds: mustDataset(t, brokkrJSON)},
		loadResult{ds: mustDataset(t, updated)},
	)
	nav := New(context.Background(), loader)
	current(t, nav)

	frame, err := nav.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Brokkr Genetics", "Anvil Series"}, visibleNames(frame))
	assert.Equal(t, 2, loader.Calls())
}

func TestCurrentHonoursContext(t *testing.T) {
	loader := newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)})
	loader.gate = make(chan struct{})
	nav := New(context.Background(), loader)
	t.Cleanup(func() {
		close(loader.gate)
		current(t, nav)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := nav.Current(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, nav.Ready())

	_, err = nav.Toggle(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribeDoesNotChangeState(t *testing.T) {
	nav := New(context.Background(), newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)}))
	frame := current(t, nav)

	d, err := nav.Describe(context.Background(), nodeID(t, frame, "Iron Kush"))
	require.NoError(t, err)
	assert.Equal(t, "Earthy and heavy.", d.Text)

	d, err = nav.Describe(context.Background(), nodeID(t, frame, "Anvil Series"))
	require.NoError(t, err)
	assert.Equal(t, straindata.DescriptionCollection, d.Kind)

	after := current(t, nav)
	assert.Equal(t, frame.Seq, after.Seq)
}

func TestResizeRetriesFailedLoad(t *testing.T) {
	loader := newFakeLoader(
		loadResult{err: &straindata.FetchError{Source: DefaultDataURL, Status: 503}},
		loadResult{ds: mustDataset(t, brokkrJSON)},
	)
	nav := New(context.Background(), loader)
	frame, err := nav.Current(context.Background())
	require.Error(t, err)
	assert.Equal(t, LoadErrorMessage, frame.Error)

	frame, err = nav.Resize(context.Background(), layout.Viewport{Width: 600})
	require.NoError(t, err)
	assert.Empty(t, frame.Error)
	assert.Len(t, frame.Visible(), 7)
	assert.Equal(t, 2, loader.Calls())
}

// blockingLoader serves ds on the first call and blocks every later call until
// its context ends.
type blockingLoader struct {
	ds      *straindata.Dataset
	started chan struct{}

	mu    sync.Mutex
	calls int
}

func (b *blockingLoader) Load(ctx context.Context, ref string) (*straindata.Dataset, error) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		return b.ds, nil
	}
	close(b.started)
	<-ctx.Done()
	return nil, &straindata.FetchError{Source: ref, Err: ctx.Err()}
}

func TestReloadCancelledKeepsTree(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	loader := &blockingLoader{ds: mustDataset(t, brokkrJSON), started: make(chan struct{})}
	nav := New(context.Background(), loader)
	before := current(t, nav)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-loader.started
		cancel()
	}()
	frame, err := nav.Reload(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before.Seq, frame.Seq)

	frame, err = nav.Toggle(context.Background(), nodeID(t, before, "Iron Kush"))
	require.NoError(t, err)
	assert.Contains(t, visibleNames(frame), "Slag")

	after := current(t, nav)
	assert.Empty(t, after.Error)
}

func TestLevelSpacingOption(t *testing.T) {
	nav := New(context.Background(),
		newFakeLoader(loadResult{ds: mustDataset(t, brokkrJSON)}),
		WithLevelSpacing(100),
	)
	frame := current(t, nav)
	for _, n := range frame.Visible() {
		if n.Name == "Anvil Series" {
			assert.InDelta(t, 100, n.To.X, 1e-9)
		}
		if n.Name == "Iron Kush" {
			assert.InDelta(t, 200, n.To.X, 1e-9)
		}
	}
}
