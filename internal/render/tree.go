// Package render turns navigator frames into HTML fragments: the SVG tree,
// the description panel and the page shell that hosts them.
package render

//go:generate templ generate

import (
	"strconv"
	"strings"

	"finitefield.org/seed-web/internal/hierarchy"
	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/reconcile"
)

const (
	pillHeight   = 30
	pillMinWidth = 40
	pillCharW    = 8
	pillRadius   = 12
	pillOffsetX  = -10
)

// PillWidth is the width of a node's rounded label.
func PillWidth(name string) int {
	return max(len(name)*pillCharW, pillMinWidth)
}

// TreeProps configures the tree fragment.
type TreeProps struct {
	Frame reconcile.Frame
	// TargetID is the element the fragment is swapped into.
	TargetID string
	// ToggleURL builds the toggle endpoint for a node id. Nil disables
	// click handlers.
	ToggleURL func(id int) string
}

func (p TreeProps) width() string  { return strconv.Itoa(p.Frame.Viewport.Normalize().Width) }
func (p TreeProps) height() string { return strconv.Itoa(p.Frame.Viewport.Normalize().Height) }
func (p TreeProps) seq() string    { return strconv.FormatUint(p.Frame.Seq, 10) }

func (p TreeProps) rootTransform() string {
	m := p.Frame.Margins
	return layout.Translate(hierarchy.Point{X: m.Left, Y: m.Top})
}

// clickable reports whether n gets a toggle handler. Exiting nodes are inert.
func (p TreeProps) clickable(n reconcile.NodeFrame) bool {
	return p.ToggleURL != nil && n.Phase != reconcile.PhaseExit
}

func (p TreeProps) hxTarget() string { return "#" + p.TargetID }

func nodeClass(n reconcile.NodeFrame) string {
	classes := []string{"node"}
	if n.Collapsed() {
		classes = append(classes, "collapsed")
	}
	if n.Grouping {
		classes = append(classes, "grouping")
	}
	if n.Phase == reconcile.PhaseExit {
		classes = append(classes, "exit")
	}
	return strings.Join(classes, " ")
}

// labelX centres the label inside its pill.
func labelX(name string) string {
	return strconv.FormatFloat(float64(len(name)*pillCharW)/2+pillOffsetX, 'f', -1, 64)
}

func itoa(v int) string { return strconv.Itoa(v) }
