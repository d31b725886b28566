package reconcile

import (
	"finitefield.org/seed-web/internal/hierarchy"
	"finitefield.org/seed-web/internal/layout"
	"finitefield.org/seed-web/internal/straindata"
)

// Phase is the transition an element goes through in a frame.
type Phase string

const (
	PhaseEnter  Phase = "enter"
	PhaseUpdate Phase = "update"
	PhaseExit   Phase = "exit"
)

// NodeFrame is one node's transition.
type NodeFrame struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Depth    int             `json:"depth"`
	State    string          `json:"state"`
	Grouping bool            `json:"grouping"`
	Phase    Phase           `json:"phase"`
	From     hierarchy.Point `json:"from"`
	To       hierarchy.Point `json:"to"`
}

// Collapsed reports whether the node has hidden children.
func (n NodeFrame) Collapsed() bool { return n.State == hierarchy.Collapsed.String() }

// EdgeFrame is one edge's transition, keyed by its child node.
type EdgeFrame struct {
	ID       int    `json:"id"`
	ParentID int    `json:"parentId"`
	Phase    Phase  `json:"phase"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// Frame is everything a backend needs to animate one pass.
type Frame struct {
	Seq         uint64                 `json:"seq"`
	Viewport    layout.Viewport        `json:"viewport"`
	Margins     layout.Margins         `json:"margins"`
	AnchorID    int                    `json:"anchorId"`
	Nodes       []NodeFrame            `json:"nodes"`
	Edges       []EdgeFrame            `json:"edges"`
	Description straindata.Description `json:"description"`
	// Error carries the inline message shown instead of the tree.
	Error string `json:"error,omitempty"`
}

// Visible returns the nodes that are not exiting.
func (f Frame) Visible() []NodeFrame {
	out := make([]NodeFrame, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		if n.Phase != PhaseExit {
			out = append(out, n)
		}
	}
	return out
}

// Describer publishes the text for an anchor node.
type Describer interface {
	Describe(name string, grouping bool) straindata.Description
}

// Driver reconciles successive layout passes of one tree.
type Driver struct {
	describe Describer

	seq       uint64
	nodeOrder []int
	nodes     map[int]NodeFrame
	edgeOrder []int
	edges     map[int]EdgeFrame
}

// NewDriver builds a Driver. A nil describer uses an empty index, so every
// name gets the fallback text.
func NewDriver(describe Describer) *Driver {
	if describe == nil {
		describe = straindata.NewIndex(nil)
	}
	return &Driver{
		describe: describe,
		nodes:    map[int]NodeFrame{},
		edges:    map[int]EdgeFrame{},
	}
}

// Reset forgets the previous visible set; the next pass enters everything.
func (d *Driver) Reset() {
	d.nodeOrder = nil
	d.edgeOrder = nil
	d.nodes = map[int]NodeFrame{}
	d.edges = map[int]EdgeFrame{}
}

// Reconcile diffs res against the previous pass, anchored at source. Entering
// elements start at source's previous position, exiting elements travel to
// its current one. Afterwards every visible node's Prev is set to its Pos.
func (d *Driver) Reconcile(res layout.Result, source *hierarchy.Node, vp layout.Viewport) Frame {
	if source == nil && len(res.Nodes) > 0 {
		source = res.Nodes[0]
	}
	d.seq++
	vp = vp.Normalize()
	frame := Frame{
		Seq:      d.seq,
		Viewport: vp,
		Margins:  vp.Margins(),
	}
	if source == nil {
		return frame
	}
	frame.AnchorID = source.ID()

	nextNodes := make([]int, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		nextNodes = append(nextNodes, n.ID())
	}
	nodeDiff := Keyed(d.nodeOrder, nextNodes)

	visibleNodes := make(map[int]NodeFrame, len(res.Nodes))
	for _, n := range res.Nodes {
		nf := NodeFrame{
			ID:       n.ID(),
			Name:     n.Name,
			Depth:    n.Depth(),
			State:    hierarchy.StateOf(n).String(),
			Grouping: n.Grouping,
			Phase:    PhaseUpdate,
			From:     n.Prev,
			To:       n.Pos,
		}
		if _, ok := d.nodes[nf.ID]; !ok {
			nf.Phase = PhaseEnter
			nf.From = source.Prev
		}
		frame.Nodes = append(frame.Nodes, nf)
		visibleNodes[nf.ID] = nf
	}
	for _, id := range nodeDiff.Exiting {
		prev := d.nodes[id]
		prev.Phase = PhaseExit
		prev.From = prev.To
		prev.To = source.Pos
		frame.Nodes = append(frame.Nodes, prev)
	}

	enterPath := layout.Diagonal(source.Prev, source.Prev)
	exitPath := layout.Diagonal(source.Pos, source.Pos)
	nextEdges := make([]int, 0, len(res.Edges))
	visibleEdges := make(map[int]EdgeFrame, len(res.Edges))
	for _, e := range res.Edges {
		ef := EdgeFrame{
			ID:       e.ID(),
			ParentID: e.Parent.ID(),
			Phase:    PhaseUpdate,
			To:       layout.Diagonal(e.Child.Pos, e.Parent.Pos),
		}
		if prev, ok := d.edges[ef.ID]; ok {
			ef.From = prev.To
		} else {
			ef.Phase = PhaseEnter
			ef.From = enterPath
		}
		frame.Edges = append(frame.Edges, ef)
		nextEdges = append(nextEdges, ef.ID)
		visibleEdges[ef.ID] = ef
	}
	for _, id := range Keyed(d.edgeOrder, nextEdges).Exiting {
		prev := d.edges[id]
		prev.Phase = PhaseExit
		prev.From = prev.To
		prev.To = exitPath
		frame.Edges = append(frame.Edges, prev)
	}

	for _, n := range res.Nodes {
		n.Prev = n.Pos
	}
	d.nodeOrder, d.nodes = nextNodes, visibleNodes
	d.edgeOrder, d.edges = nextEdges, visibleEdges

	frame.Description = d.describe.Describe(source.Name, source.Grouping)
	return frame
}
