// Package hierarchy models the strain tree shown by the navigator: nodes with
// owned child lists, a non-owning parent index, lazily minted identities and
// the per-node disclosure state.
package hierarchy

import (
	"errors"
	"strings"
)

// ErrUnknownNode is returned when an identifier does not name a node that has
// been laid out at least once.
var ErrUnknownNode = errors.New("hierarchy: unknown node")

// Raw is the nested {name, children[]} shape read from a dataset.
type Raw struct {
	Name     string `json:"name" yaml:"name"`
	Children []Raw  `json:"children,omitempty" yaml:"children,omitempty"`
}

// Point is a screen position. X runs along the depth axis, Y along the
// breadth axis.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one strain (or grouping) in the tree.
type Node struct {
	Name string
	// Grouping marks organizational category nodes: they have children and no
	// description of their own.
	Grouping bool

	id    int
	depth int

	// Pos is written by the layout engine; Prev holds the position from the
	// previous reconciliation pass.
	Pos  Point
	Prev Point

	children []*Node
	hidden   []*Node
}

// ID returns the node identity, or 0 when it has not been laid out yet.
func (n *Node) ID() int { return n.id }

// Depth is 0 for the root and parent depth + 1 otherwise.
func (n *Node) Depth() int { return n.depth }

// Children returns the visible children. Collapsed nodes return nil.
func (n *Node) Children() []*Node { return n.children }

// Hidden returns the children retained while the node is collapsed.
func (n *Node) Hidden() []*Node { return n.hidden }

// Leaf reports whether the node never had children.
func (n *Node) Leaf() bool { return len(n.children) == 0 && len(n.hidden) == 0 }

// Counter mints node identities. It is owned by a single Tree so separate
// trees never interfere with each other.
type Counter struct {
	last int
}

// Next returns the next identity, starting at 1.
func (c *Counter) Next() int {
	c.last++
	return c.last
}

// Tree owns the node structure for one navigator instance.
type Tree struct {
	root    *Node
	ids     Counter
	parents map[*Node]*Node
	byID    map[int]*Node
}

// Build converts raw data into a Tree. described reports whether a name has a
// description entry; it feeds the Grouping flag. A nil described treats every
// name as undescribed.
func Build(raw Raw, described func(name string) bool) *Tree {
	if described == nil {
		described = func(string) bool { return false }
	}
	t := &Tree{
		parents: make(map[*Node]*Node),
		byID:    make(map[int]*Node),
	}
	t.root = t.build(raw, nil, 0, described)
	return t
}

func (t *Tree) build(raw Raw, parent *Node, depth int, described func(string) bool) *Node {
	n := &Node{
		Name:  strings.TrimSpace(raw.Name),
		depth: depth,
	}
	if parent != nil {
		t.parents[n] = parent
	}
	if len(raw.Children) > 0 {
		n.children = make([]*Node, 0, len(raw.Children))
		for _, child := range raw.Children {
			n.children = append(n.children, t.build(child, n, depth+1, described))
		}
	}
	n.Grouping = len(n.children) > 0 && !described(n.Name)
	return n
}

// Placeholder returns a single-node tree used when the dataset cannot be read.
func Placeholder(label string) *Tree {
	if strings.TrimSpace(label) == "" {
		label = "Error"
	}
	return Build(Raw{Name: label}, nil)
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Parent returns the parent of n, or nil for the root and for foreign nodes.
func (t *Tree) Parent(n *Node) *Node { return t.parents[n] }

// Ancestors returns the chain from n's parent up to the root.
func (t *Tree) Ancestors(n *Node) []*Node {
	var out []*Node
	for p := t.parents[n]; p != nil; p = t.parents[p] {
		out = append(out, p)
	}
	return out
}

// Lookup finds a node by identity.
func (t *Tree) Lookup(id int) (*Node, error) {
	if n, ok := t.byID[id]; ok {
		return n, nil
	}
	return nil, ErrUnknownNode
}

// Visible walks the nodes reachable through visible children, depth first in
// child order. Depths are recomputed and identities are minted for nodes seen
// for the first time.
func (t *Tree) Visible() []*Node {
	var out []*Node
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		n.depth = depth
		if n.id == 0 {
			n.id = t.ids.Next()
			t.byID[n.id] = n
		}
		out = append(out, n)
		for _, child := range n.children {
			walk(child, depth+1)
		}
	}
	if t.root != nil {
		walk(t.root, 0)
	}
	return out
}

// Walk visits every node, visible or hidden, in depth-first child order.
func (t *Tree) Walk(fn func(n *Node)) {
	var walk func(n *Node)
	walk = func(n *Node) {
		fn(n)
		for _, child := range n.children {
			walk(child)
		}
		for _, child := range n.hidden {
			walk(child)
		}
	}
	if t.root != nil {
		walk(t.root)
	}
}

// Size counts every node in the tree.
func (t *Tree) Size() int {
	count := 0
	t.Walk(func(*Node) { count++ })
	return count
}
