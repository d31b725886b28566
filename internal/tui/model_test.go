package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/navigator"
	"finitefield.org/seed-web/internal/reconcile"
	"finitefield.org/seed-web/internal/straindata"
)

const sampleJSON = `{
  "strainTree": {
    "name": "Brokkr Genetics",
    "children": [
      {"name": "Anvil Series", "children": [
        {"name": "Iron Kush", "children": [{"name": "Slag"}]},
        {"name": "Hammer"}
      ]},
      {"name": "Heirloom Treasures"}
    ]
  },
  "strains": [{"name": "Hammer", "description": "Dense and resinous."}]
}`

type staticLoader struct{ ds *straindata.Dataset }

func (l staticLoader) Load(context.Context, string) (*straindata.Dataset, error) { return l.ds, nil }

func newModel(t *testing.T) Model {
	t.Helper()
	ds, err := straindata.Decode("test", []byte(sampleJSON), straindata.FormatJSON)
	require.NoError(t, err)
	nav := navigator.New(context.Background(), staticLoader{ds: ds},
		navigator.WithViewport(layout.Viewport{Width: 960, Height: 350}))
	m := New(nav, "Our Genetics", 10*time.Millisecond)
	m, _ = step(t, m, m.Init()())
	return m
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

// press sends a key and feeds any resulting frame back into the model.
func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	m, cmd := step(t, m, msg)
	if cmd != nil {
		m, _ = step(t, m, cmd())
	}
	return m
}

func names(f reconcile.Frame) []string {
	var out []string
	for _, n := range f.Visible() {
		out = append(out, n.Name)
	}
	return out
}

func TestInitialViewListsDefaultTree(t *testing.T) {
	m := newModel(t)

	assert.Equal(t, []string{"Brokkr Genetics", "Anvil Series", "Iron Kush", "Hammer", "Heirloom Treasures"}, names(m.Frame()))
	assert.Equal(t, m.Frame().AnchorID, m.Cursor())

	view := m.View()
	assert.True(t, strings.HasPrefix(view, m.styles.Title.Render("Our Genetics")))
	assert.Contains(t, view, "▾ Brokkr Genetics")
	assert.Contains(t, view, "  ▾ Anvil Series")
	assert.Contains(t, view, "    ▸ Iron Kush")
	assert.Contains(t, view, "    • Hammer")
}

func TestLoadingView(t *testing.T) {
	m := New(nil, "", 0)
	assert.Contains(t, m.View(), "Loading")
}

func TestToggleFromCursor(t *testing.T) {
	m := newModel(t)
	m = press(t, m, "down")
	m = press(t, m, "down")
	m = press(t, m, "enter")

	assert.Contains(t, names(m.Frame()), "Slag")
	assert.Contains(t, m.View(), "    ▾ Iron Kush")

	m = press(t, m, "enter")
	assert.NotContains(t, names(m.Frame()), "Slag")
}

func TestLeafShowsDescription(t *testing.T) {
	m := newModel(t)
	for i := 0; i < 3; i++ {
		m = press(t, m, "j")
	}
	m = press(t, m, "space")

	d := m.Frame().Description
	assert.Equal(t, straindata.DescriptionFound, d.Kind)
	assert.Equal(t, "Hammer", d.Name)
	assert.Contains(t, m.View(), "Dense and resinous.")
}

func TestExpandAndCollapseAll(t *testing.T) {
	m := newModel(t)

	m = press(t, m, "e")
	assert.Len(t, m.Frame().Visible(), 6)

	m = press(t, m, "down")
	m = press(t, m, "down")
	m = press(t, m, "c")
	assert.Equal(t, []string{"Brokkr Genetics", "Anvil Series", "Heirloom Treasures"}, names(m.Frame()))
	assert.Contains(t, names(m.Frame()), nameOf(m.Frame(), m.Cursor()))
}

func nameOf(f reconcile.Frame, id int) string {
	for _, n := range f.Visible() {
		if n.ID == id {
			return n.Name
		}
	}
	return ""
}

func TestCursorStaysInBounds(t *testing.T) {
	m := newModel(t)
	m = press(t, m, "up")
	assert.Equal(t, "Brokkr Genetics", nameOf(m.Frame(), m.Cursor()))
	m = press(t, m, "G")
	assert.Equal(t, "Heirloom Treasures", nameOf(m.Frame(), m.Cursor()))
	m = press(t, m, "j")
	assert.Equal(t, "Heirloom Treasures", nameOf(m.Frame(), m.Cursor()))
	m = press(t, m, "g")
	assert.Equal(t, "Brokkr Genetics", nameOf(m.Frame(), m.Cursor()))
}

func TestResizeIsDebounced(t *testing.T) {
	m := newModel(t)
	size := tea.WindowSizeMsg{Width: 100, Height: 30}

	m, first := step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	require.NotNil(t, first)
	m, second := step(t, m, size)
	require.NotNil(t, second)

	m, cmd := step(t, m, resizeMsg{gen: 1, size: tea.WindowSizeMsg{Width: 80, Height: 24}})
	assert.Nil(t, cmd)

	m, cmd = step(t, m, resizeMsg{gen: 2, size: size})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())
	assert.Equal(t, 800, m.Frame().Viewport.Width)
	assert.Equal(t, 480, m.Frame().Viewport.Height)
}

func TestQuit(t *testing.T) {
	m := newModel(t)
	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestErrorFrameIsShown(t *testing.T) {
	m := New(nil, "", 0)
	m, _ = step(t, m, frameMsg{frame: reconcile.Frame{Error: navigator.LoadErrorMessage}})
	assert.Contains(t, m.View(), navigator.LoadErrorMessage)
}

func TestTitleIsConfigurable(t *testing.T) {
	m := New(nil, "Unsere Genetik", 0)
	m, _ = step(t, m, frameMsg{frame: reconcile.Frame{Error: navigator.LoadErrorMessage}})
	view := m.View()
	assert.Contains(t, view, "Unsere Genetik")
	assert.NotContains(t, view, "Our Genetics")
}

func TestResizeMovesCursorToRoot(t *testing.T) {
	m := newModel(t)
	m = press(t, m, "down")
	m = press(t, m, "down")
	require.Equal(t, "Iron Kush", nameOf(m.Frame(), m.Cursor()))

	size := tea.WindowSizeMsg{Width: 100, Height: 30}
	m, _ = step(t, m, size)
	m, cmd := step(t, m, resizeMsg{gen: m.gen, size: size})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())

	assert.Equal(t, 800, m.Frame().Viewport.Width)
	assert.Equal(t, m.Frame().AnchorID, m.Cursor())
	assert.Equal(t, "Brokkr Genetics", nameOf(m.Frame(), m.Cursor()))
}
