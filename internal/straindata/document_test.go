package straindata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeFallbackNeverEmpty(t *testing.T) {
	idx := NewIndex([]Strain{
		{Name: "Iron Kush", Description: "Earthy."},
		{Name: "Blank", Description: "  "},
	})

	for _, name := range []string{"Unknown", "Blank", "", "iron kush"} {
		d := idx.Describe(name, false)
		assert.Equal(t, FallbackText, d.Text, name)
		assert.Equal(t, DescriptionMissing, d.Kind, name)
		assert.Equal(t, FallbackText, idx.Text(name))
	}

	var nilIndex *Index
	assert.Equal(t, FallbackText, nilIndex.Text("anything"))
}

func TestDescribeKinds(t *testing.T) {
	idx := NewIndex([]Strain{{Name: " Iron Kush ", Description: "Earthy."}})

	assert.Equal(t, Description{Name: "Iron Kush", Text: "Earthy.", Kind: DescriptionFound}, idx.Describe("Iron Kush", false))
	assert.Equal(t, Description{
		Name: "Anvil Series",
		Text: "Anvil Series is a collection of strains. Click on individual strain names to see detailed information.",
		Kind: DescriptionCollection,
	}, idx.Describe("Anvil Series", true))
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("data/tree.yaml", ""))
	assert.Equal(t, FormatYAML, DetectFormat("https://cdn/x.YML?v=2", ""))
	assert.Equal(t, FormatYAML, DetectFormat("https://cdn/x", "text/yaml; charset=utf-8"))
	assert.Equal(t, FormatJSON, DetectFormat("data/straindata.json", "application/json"))
	assert.Equal(t, FormatJSON, DetectFormat("data/straindata", ""))
}
