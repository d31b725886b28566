package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRaw() Raw {
	return Raw{Name: "R", Children: []Raw{
		{Name: "A", Children: []Raw{
			{Name: "A1", Children: []Raw{{Name: "A1a"}}},
		}},
		{Name: "B"},
	}}
}

func deepRaw() Raw {
	return Raw{Name: "Brokkr Genetics", Children: []Raw{
		{Name: "Anvil Series", Children: []Raw{
			{Name: "Iron Kush", Children: []Raw{
				{Name: "Iron Kush #2", Children: []Raw{{Name: "Rust"}}},
				{Name: "Slag"},
			}},
			{Name: "Hammer"},
		}},
		{Name: "Forge Collection", Children: []Raw{
			{Name: "Bellows", Children: []Raw{{Name: "Ember"}, {Name: "Ash"}}},
		}},
		{Name: "Heirloom Treasures"},
	}}
}

func names(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func find(t *testing.T, tree *Tree, name string) *Node {
	t.Helper()
	var found *Node
	tree.Walk(func(n *Node) {
		if n.Name == name && found == nil {
			found = n
		}
	})
	require.NotNil(t, found, "node %q", name)
	return found
}

func TestDefaultDisclosureScenario(t *testing.T) {
	tree := Build(sampleRaw(), nil)
	tree.ApplyDefault()

	assert.Equal(t, []string{"R", "A", "A1", "B"}, names(tree.Visible()))
	assert.Equal(t, Expanded, StateOf(tree.Root()))
	assert.Equal(t, Expanded, StateOf(find(t, tree, "A")))
	assert.Equal(t, Collapsed, StateOf(find(t, tree, "A1")))
	assert.Equal(t, Leaf, StateOf(find(t, tree, "B")))

	a1 := find(t, tree, "A1")
	require.True(t, tree.Toggle(a1))
	assert.Equal(t, []string{"R", "A", "A1", "A1a", "B"}, names(tree.Visible()))
}

func TestIdentityStableAcrossOperations(t *testing.T) {
	tree := Build(deepRaw(), nil)
	tree.ApplyDefault()
	tree.ExpandAll()
	ids := map[*Node]int{}
	for _, n := range tree.Visible() {
		require.NotZero(t, n.ID())
		ids[n] = n.ID()
	}

	tree.CollapseAll()
	tree.Visible()
	tree.Toggle(find(t, tree, "Anvil Series"))
	tree.Visible()
	tree.ExpandAll()
	for _, n := range tree.Visible() {
		assert.Equal(t, ids[n], n.ID(), "node %s", n.Name)
	}
}

func TestIdentitiesMintedLazilyAndUnique(t *testing.T) {
	tree := Build(deepRaw(), nil)
	tree.ApplyDefault()
	first := tree.Visible()
	seen := map[int]bool{}
	for _, n := range first {
		assert.False(t, seen[n.ID()])
		seen[n.ID()] = true
	}

	rust := find(t, tree, "Rust")
	assert.Zero(t, rust.ID(), "hidden nodes are not assigned identities")

	tree.ExpandAll()
	tree.Visible()
	assert.NotZero(t, rust.ID())
	assert.False(t, seen[rust.ID()])

	got, err := tree.Lookup(rust.ID())
	require.NoError(t, err)
	assert.Same(t, rust, got)

	_, err = tree.Lookup(9999)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestCollapseThenExpandIsLossless(t *testing.T) {
	tree := Build(deepRaw(), nil)
	tree.ExpandAll()
	tree.Visible()

	tree.Walk(func(n *Node) {
		if n.Leaf() || n == tree.Root() {
			return
		}
		before := append([]*Node(nil), n.Children()...)
		require.True(t, tree.Toggle(n))
		assert.Empty(t, n.Children())
		require.True(t, tree.Toggle(n))
		assert.Equal(t, before, n.Children(), "node %s", n.Name)
	})
}

func TestMutualExclusivity(t *testing.T) {
	tree := Build(deepRaw(), nil)
	check := func(stage string) {
		tree.Walk(func(n *Node) {
			if n.Leaf() {
				return
			}
			visible, hidden := len(n.Children()) > 0, len(n.Hidden()) > 0
			assert.True(t, visible != hidden, "%s: node %s visible=%v hidden=%v", stage, n.Name, visible, hidden)
		})
	}

	check("build")
	tree.ApplyDefault()
	check("default")
	tree.ExpandAll()
	check("expand all")
	tree.CollapseAll()
	check("collapse all")
	tree.Toggle(find(t, tree, "Forge Collection"))
	tree.Toggle(find(t, tree, "Bellows"))
	check("toggles")
}

func TestExpandAllAndCollapseAllIdempotent(t *testing.T) {
	tree := Build(deepRaw(), nil)
	tree.ApplyDefault()

	tree.ExpandAll()
	once := names(tree.Visible())
	tree.ExpandAll()
	assert.Equal(t, once, names(tree.Visible()))
	assert.Equal(t, tree.Size(), len(once))

	tree.CollapseAll()
	once = names(tree.Visible())
	tree.CollapseAll()
	assert.Equal(t, once, names(tree.Visible()))
	assert.Equal(t, []string{"Brokkr Genetics", "Anvil Series", "Forge Collection", "Heirloom Treasures"}, once)
}

func TestCollapseAllHidesDeepSubtrees(t *testing.T) {
	tree := Build(deepRaw(), nil)
	tree.ExpandAll()
	tree.CollapseAll()

	anvil := find(t, tree, "Anvil Series")
	require.True(t, tree.Toggle(anvil))
	// Children re-appear collapsed: deeper levels were collapsed too.
	assert.Equal(t, Collapsed, StateOf(find(t, tree, "Iron Kush")))
	assert.NotContains(t, names(tree.Visible()), "Iron Kush #2")
}

func TestToggleLeafAndRootAreNoops(t *testing.T) {
	tree := Build(sampleRaw(), nil)
	tree.ApplyDefault()
	before := names(tree.Visible())

	assert.False(t, tree.Toggle(find(t, tree, "B")))
	assert.False(t, tree.Toggle(tree.Root()))
	assert.False(t, tree.Toggle(nil))
	assert.Equal(t, before, names(tree.Visible()))
}

func TestParentIndexAndDepth(t *testing.T) {
	tree := Build(deepRaw(), nil)
	tree.ExpandAll()
	tree.Visible()

	rust := find(t, tree, "Rust")
	assert.Equal(t, 4, rust.Depth())
	assert.Equal(t, []string{"Iron Kush #2", "Iron Kush", "Anvil Series", "Brokkr Genetics"}, names(tree.Ancestors(rust)))
	assert.Nil(t, tree.Parent(tree.Root()))
}

func TestGroupingFlagFromShape(t *testing.T) {
	described := map[string]bool{"Iron Kush": true, "Rust": true}
	tree := Build(deepRaw(), func(name string) bool { return described[name] })

	assert.True(t, tree.Root().Grouping)
	assert.True(t, find(t, tree, "Anvil Series").Grouping)
	assert.False(t, find(t, tree, "Iron Kush").Grouping, "described parents are strains")
	assert.False(t, find(t, tree, "Hammer").Grouping, "leaves are never groupings")
	assert.False(t, find(t, tree, "Heirloom Treasures").Grouping)
}

func TestPlaceholderTree(t *testing.T) {
	tree := Placeholder("")
	tree.ApplyDefault()
	visible := tree.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "Error", visible[0].Name)
	assert.False(t, visible[0].Grouping)
}

func TestSeparateTreesHaveIndependentCounters(t *testing.T) {
	a := Build(sampleRaw(), nil)
	b := Build(sampleRaw(), nil)
	a.ExpandAll()
	a.Visible()
	b.ApplyDefault()
	bv := b.Visible()
	assert.Equal(t, 1, bv[0].ID())
}
