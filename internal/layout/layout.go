// Package layout positions the visible part of a strain tree. The depth axis
// is a fixed spacing per level; the breadth axis uses a contour-based tidy
// tree so sibling subtrees never overlap and parents sit centred over their
// visible children.
package layout

import (
	"math"

	"finitefield.org/seed-web/internal/hierarchy"
)

const (
	// LevelSpacing is the distance between two depth levels.
	LevelSpacing = 180.0

	// DefaultHeight is used when a viewport does not carry a height.
	DefaultHeight = 350

	// MobileBreakpoint is the widest viewport treated as mobile.
	MobileBreakpoint = 768

	mobileAnchorOffset = -100.0
)

// Margins surround the drawing area inside the viewport.
type Margins struct {
	Top, Right, Bottom, Left float64
}

// Viewport describes the mount point dimensions in pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Normalize fills the default height.
func (v Viewport) Normalize() Viewport {
	if v.Height <= 0 {
		v.Height = DefaultHeight
	}
	return v
}

// Mobile reports whether the small-screen margins apply.
func (v Viewport) Mobile() bool { return v.Width <= MobileBreakpoint }

// Margins returns the margins for the viewport.
func (v Viewport) Margins() Margins {
	if v.Mobile() {
		return Margins{Top: 20, Right: 20, Bottom: 20, Left: 20}
	}
	return Margins{Top: 20, Right: 90, Bottom: 20, Left: 90}
}

// Extent is the breadth available to the layout.
func (v Viewport) Extent() float64 {
	v = v.Normalize()
	m := v.Margins()
	return math.Max(float64(v.Height)-m.Top-m.Bottom, 0)
}

// Anchor is the position new trees grow out of on their first pass.
func (v Viewport) Anchor() hierarchy.Point {
	v = v.Normalize()
	offset := 0.0
	if v.Mobile() {
		offset = mobileAnchorOffset
	}
	return hierarchy.Point{X: offset, Y: float64(v.Height) / 2}
}

// Edge joins a visible parent to one of its visible children.
type Edge struct {
	Parent *hierarchy.Node
	Child  *hierarchy.Node
}

// ID keys the edge by its child, which has exactly one parent.
func (e Edge) ID() int { return e.Child.ID() }

// Result is one layout pass.
type Result struct {
	Nodes []*hierarchy.Node
	Edges []Edge
}

// Engine computes positions. The zero value uses LevelSpacing.
type Engine struct {
	LevelSpacing float64
}

// Layout positions every visible node of t inside vp, writing Node.Pos. Nodes
// are returned in depth-first order with children in their original sequence.
func (e Engine) Layout(t *hierarchy.Tree, vp Viewport) Result {
	nodes := t.Visible()
	if len(nodes) == 0 {
		return Result{}
	}
	spacing := e.LevelSpacing
	if spacing <= 0 {
		spacing = LevelSpacing
	}

	offsets := make(map[*hierarchy.Node]float64, len(nodes))
	measure(t.Root(), offsets)

	breadth := make(map[*hierarchy.Node]float64, len(nodes))
	var place func(n *hierarchy.Node, at float64)
	place = func(n *hierarchy.Node, at float64) {
		breadth[n] = at
		for _, child := range n.Children() {
			place(child, at+offsets[child])
		}
	}
	place(t.Root(), 0)

	leftmost, rightmost := nodes[0], nodes[0]
	for _, n := range nodes[1:] {
		if breadth[n] < breadth[leftmost] {
			leftmost = n
		}
		if breadth[n] > breadth[rightmost] {
			rightmost = n
		}
	}
	pad := 1.0
	if leftmost != rightmost {
		pad = separation(t, leftmost, rightmost) / 2
	}
	span := breadth[rightmost] - breadth[leftmost] + 2*pad
	scale := vp.Extent() / span

	res := Result{Nodes: nodes}
	for _, n := range nodes {
		n.Pos = hierarchy.Point{
			X: float64(n.Depth()) * spacing,
			Y: (breadth[n] - breadth[leftmost] + pad) * scale,
		}
		for _, child := range n.Children() {
			res.Edges = append(res.Edges, Edge{Parent: n, Child: child})
		}
	}
	return res
}

// separation is 1 between siblings and 2 between cousins.
func separation(t *hierarchy.Tree, a, b *hierarchy.Node) float64 {
	if t.Parent(a) != nil && t.Parent(a) == t.Parent(b) {
		return 1
	}
	return 2
}

// contour holds the leftmost and rightmost breadth of a subtree per relative
// depth, measured from the subtree root.
type contour struct {
	left, right []float64
}

// measure lays out n's visible subtree relative to n and records every
// child's offset from its parent.
func measure(n *hierarchy.Node, offsets map[*hierarchy.Node]float64) contour {
	children := n.Children()
	if len(children) == 0 {
		return contour{left: []float64{0}, right: []float64{0}}
	}

	var merged contour
	positions := make([]float64, len(children))
	for i, child := range children {
		c := measure(child, offsets)
		if i == 0 {
			merged = c
			continue
		}
		shift := math.Inf(-1)
		for d := 0; d < len(c.left) && d < len(merged.right); d++ {
			gap := 2.0
			if d == 0 {
				gap = 1
			}
			shift = math.Max(shift, merged.right[d]-c.left[d]+gap)
		}
		positions[i] = shift
		merged = merge(merged, c, shift)
	}

	mid := (positions[0] + positions[len(positions)-1]) / 2
	for i, child := range children {
		offsets[child] = positions[i] - mid
	}

	out := contour{
		left:  make([]float64, 0, len(merged.left)+1),
		right: make([]float64, 0, len(merged.right)+1),
	}
	out.left = append(out.left, 0)
	out.right = append(out.right, 0)
	for d := range merged.left {
		out.left = append(out.left, merged.left[d]-mid)
		out.right = append(out.right, merged.right[d]-mid)
	}
	return out
}

// merge combines an accumulated contour with a sibling contour placed shift
// to its right.
func merge(acc, next contour, shift float64) contour {
	depth := max(len(acc.left), len(next.left))
	out := contour{left: make([]float64, depth), right: make([]float64, depth)}
	for d := 0; d < depth; d++ {
		switch {
		case d < len(acc.left) && d < len(next.left):
			out.left[d] = acc.left[d]
			out.right[d] = next.right[d] + shift
		case d < len(acc.left):
			out.left[d] = acc.left[d]
			out.right[d] = acc.right[d]
		default:
			out.left[d] = next.left[d] + shift
			out.right[d] = next.right[d] + shift
		}
	}
	return out
}
