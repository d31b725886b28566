package hierarchy

// State is the disclosure state of a node.
type State int

const (
	// Leaf nodes have no disclosure state.
	Leaf State = iota
	Expanded
	Collapsed
)

func (s State) String() string {
	switch s {
	case Expanded:
		return "expanded"
	case Collapsed:
		return "collapsed"
	default:
		return "leaf"
	}
}

// StateOf reports the disclosure state of n.
func StateOf(n *Node) State {
	switch {
	case len(n.children) > 0:
		return Expanded
	case len(n.hidden) > 0:
		return Collapsed
	default:
		return Leaf
	}
}

// Toggle flips n between Expanded and Collapsed. Leaves and the root are left
// untouched; the return value reports whether anything changed.
func (t *Tree) Toggle(n *Node) bool {
	if n == nil || n == t.root {
		return false
	}
	switch StateOf(n) {
	case Expanded:
		n.hidden, n.children = n.children, nil
		return true
	case Collapsed:
		n.children, n.hidden = n.hidden, nil
		return true
	default:
		return false
	}
}

// CollapseAll collapses every descendant of the root at all depths. The root
// stays expanded.
func (t *Tree) CollapseAll() {
	if t.root == nil {
		return
	}
	t.expandNode(t.root)
	for _, child := range t.root.children {
		collapseSubtree(child)
	}
}

// ExpandAll expands every node at every depth.
func (t *Tree) ExpandAll() {
	if t.root == nil {
		return
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		t.expandNode(n)
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(t.root)
}

// ApplyDefault resets disclosure to the initial pattern: root and depth 1
// expanded, every non-leaf at depth 2 or deeper collapsed.
func (t *Tree) ApplyDefault() {
	if t.root == nil {
		return
	}
	t.expandNode(t.root)
	for _, child := range t.root.children {
		t.expandNode(child)
		for _, grandchild := range child.children {
			collapseSubtree(grandchild)
		}
	}
}

func (t *Tree) expandNode(n *Node) {
	if len(n.hidden) > 0 {
		n.children, n.hidden = n.hidden, nil
	}
}

// collapseSubtree collapses n and everything below it, whether currently
// visible or already hidden.
func collapseSubtree(n *Node) {
	for _, child := range n.children {
		collapseSubtree(child)
	}
	for _, child := range n.hidden {
		collapseSubtree(child)
	}
	if len(n.children) > 0 {
		n.hidden, n.children = n.children, nil
	}
}
