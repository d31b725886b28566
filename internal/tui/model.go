// Package tui is the terminal backend for the strain navigator: an indented
// list of the visible nodes with a description panel.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finitefield.org/seed-web/internal/hierarchy"
	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/navigator"
	"finitefield.org/seed-web/internal/reconcile"
	"finitefield.org/seed-web/internal/straindata"
)

// Terminal cells are mapped to layout pixels with these factors.
const (
	cellWidth  = 8
	cellHeight = 16
)

// Navigator is the subset of *navigator.Navigator the model drives.
type Navigator interface {
	Current(ctx context.Context) (reconcile.Frame, error)
	Toggle(ctx context.Context, id int) (reconcile.Frame, error)
	ExpandAll(ctx context.Context) (reconcile.Frame, error)
	CollapseAll(ctx context.Context) (reconcile.Frame, error)
	Resize(ctx context.Context, vp layout.Viewport) (reconcile.Frame, error)
}

type frameMsg struct {
	frame reconcile.Frame
	err   error
	// rebuilt marks frames from a resize, whose node ids are minted afresh.
	rebuilt bool
}

type resizeMsg struct {
	gen  int
	size tea.WindowSizeMsg
}

// Model is the bubbletea model.
type Model struct {
	nav      Navigator
	styles   Styles
	title    string
	debounce time.Duration

	frame    reconcile.Frame
	err      error
	cursorID int
	width    int
	height   int
	gen      int
	loading  bool
}

// New returns a model over nav headed by title. Window resizes are applied
// after delay without another resize.
func New(nav Navigator, title string, delay time.Duration) Model {
	if delay <= 0 {
		delay = navigator.DefaultDebounce
	}
	return Model{nav: nav, styles: DefaultStyles(), title: title, debounce: delay, loading: true}
}

func run(fn func(ctx context.Context) (reconcile.Frame, error)) tea.Cmd {
	return func() tea.Msg {
		f, err := fn(context.Background())
		return frameMsg{frame: f, err: err}
	}
}

// Init loads the first frame.
func (m Model) Init() tea.Cmd {
	return run(m.nav.Current)
}

// Update handles key, resize and frame messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.loading = false
		if msg.rebuilt {
			m.cursorID = 0
		}
		m.frame, m.err = msg.frame, msg.err
		m.keepCursor()
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.gen++
		gen := m.gen
		return m, tea.Tick(m.debounce, func(time.Time) tea.Msg { return resizeMsg{gen: gen, size: msg} })

	case resizeMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		vp := layout.Viewport{Width: msg.size.Width * cellWidth, Height: msg.size.Height * cellHeight}
		return m, func() tea.Msg {
			f, err := m.nav.Resize(context.Background(), vp)
			return frameMsg{frame: f, err: err, rebuilt: true}
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "home", "g":
		m.moveTo(0)
	case "end", "G":
		m.moveTo(len(m.frame.Visible()) - 1)
	case "enter", " ":
		if m.cursorID == 0 {
			return m, nil
		}
		id := m.cursorID
		return m, run(func(ctx context.Context) (reconcile.Frame, error) { return m.nav.Toggle(ctx, id) })
	case "e":
		return m, run(m.nav.ExpandAll)
	case "c":
		return m, run(m.nav.CollapseAll)
	}
	return m, nil
}

func (m *Model) move(delta int) {
	nodes := m.frame.Visible()
	m.moveTo(m.cursorIndex(nodes) + delta)
}

func (m *Model) moveTo(i int) {
	nodes := m.frame.Visible()
	if len(nodes) == 0 {
		return
	}
	i = max(0, min(i, len(nodes)-1))
	m.cursorID = nodes[i].ID
}

func (m Model) cursorIndex(nodes []reconcile.NodeFrame) int {
	for i, n := range nodes {
		if n.ID == m.cursorID {
			return i
		}
	}
	return 0
}

// keepCursor leaves the cursor on its node when still visible, otherwise on
// the frame's anchor. Ids are only stable between frames of one tree, so a
// cleared cursor always lands on the anchor.
func (m *Model) keepCursor() {
	nodes := m.frame.Visible()
	for _, n := range nodes {
		if n.ID == m.cursorID {
			return
		}
	}
	m.cursorID = 0
	for _, n := range nodes {
		if n.ID == m.frame.AnchorID {
			m.cursorID = n.ID
			return
		}
	}
	if len(nodes) > 0 {
		m.cursorID = nodes[0].ID
	}
}

// Cursor returns the id of the highlighted node.
func (m Model) Cursor() int { return m.cursorID }

// Frame returns the last frame received.
func (m Model) Frame() reconcile.Frame { return m.frame }

// View renders the tree list, the description and a key hint.
func (m Model) View() string {
	if m.loading {
		return m.styles.Muted.Render("Loading strain data...") + "\n"
	}
	var b strings.Builder
	if m.title != "" {
		b.WriteString(m.styles.Title.Render(m.title))
		b.WriteString("\n\n")
	}

	switch {
	case m.err != nil && m.frame.Error == "":
		b.WriteString(m.styles.Error.Render(m.err.Error()))
		b.WriteString("\n")
	case m.frame.Error != "":
		b.WriteString(m.styles.Error.Render(m.frame.Error))
		b.WriteString("\n")
	default:
		for _, n := range m.frame.Visible() {
			b.WriteString(m.renderNode(n))
			b.WriteString("\n")
		}
	}

	if d := m.frame.Description; d.Text != "" {
		b.WriteString("\n")
		body := d.Text
		if d.Kind == straindata.DescriptionFound {
			body = m.styles.Name.Render(d.Name) + ": " + d.Text
		}
		width := m.width - 4
		if width <= 0 {
			width = 76
		}
		b.WriteString(m.styles.Panel.Width(width).Render(body))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("↑/↓ move • enter toggle • e expand all • c collapse all • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderNode(n reconcile.NodeFrame) string {
	marker := "•"
	switch {
	case n.Collapsed():
		marker = "▸"
	case n.State == hierarchy.Expanded.String():
		marker = "▾"
	}
	line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", n.Depth), marker, n.Name)
	style := m.styles.Node
	if n.Grouping {
		style = m.styles.Group
	}
	if n.ID == m.cursorID {
		style = m.styles.Cursor
	}
	return style.Render(line)
}

// Run starts a full-screen program over nav.
func Run(nav Navigator, title string, delay time.Duration, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(New(nav, title, delay), opts...).Run()
	return err
}

// Styles are the lipgloss styles of the view.
type Styles struct {
	Title  lipgloss.Style
	Node   lipgloss.Style
	Group  lipgloss.Style
	Cursor lipgloss.Style
	Name   lipgloss.Style
	Panel  lipgloss.Style
	Error  lipgloss.Style
	Muted  lipgloss.Style
}

var (
	copper = lipgloss.Color("#b87333")
	tan    = lipgloss.Color("#c69c6d")
	cream  = lipgloss.Color("#f5f0e6")
	danger = lipgloss.Color("#e53935")
	muted  = lipgloss.Color("#8a8a8a")
)

// DefaultStyles uses the storefront palette.
func DefaultStyles() Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(copper),
		Node:   lipgloss.NewStyle(),
		Group:  lipgloss.NewStyle().Foreground(tan),
		Cursor: lipgloss.NewStyle().Bold(true).Foreground(cream).Background(copper),
		Name:   lipgloss.NewStyle().Bold(true),
		Panel:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(tan).Padding(0, 1),
		Error:  lipgloss.NewStyle().Foreground(danger),
		Muted:  lipgloss.NewStyle().Foreground(muted),
	}
}
