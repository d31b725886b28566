package seo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finitefield.org/seed-web/internal/straindata"
)

const dataset = `{
  "strainTree": {"name": "Root", "children": [
    {"name": "Kush Line", "children": [{"name": "Alpha"}, {"name": "Beta"}]},
    {"name": "Gamma"}
  ]},
  "strains": [
    {"name": "Beta", "description": "Sweet *and* sticky."},
    {"name": "Alpha", "description": "Piney."}
  ]
}`

func TestCatalogItemsFollowTreeOrder(t *testing.T) {
	ds, err := straindata.Decode("test.json", []byte(dataset), straindata.FormatJSON)
	require.NoError(t, err)

	items := CatalogItems(ds)
	assert.Equal(t, []CatalogItem{
		{Name: "Alpha", Description: "Piney."},
		{Name: "Beta", Description: "Sweet *and* sticky."},
	}, items)
}

func TestCatalog(t *testing.T) {
	assert.Nil(t, Catalog("Empty", nil))

	payload := JSON(Catalog("Genetics", []CatalogItem{{Name: "Beta", Description: "Sweet *and* **sticky**."}}))
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	assert.Equal(t, "ItemList", got["@type"])
	assert.EqualValues(t, 1, got["numberOfItems"])
	el := got["itemListElement"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, el["position"])
	item := el["item"].(map[string]any)
	assert.Equal(t, "Product", item["@type"])
	assert.Equal(t, "Sweet and sticky.", item["description"])
}

func TestOrganizationOmitsEmptyURL(t *testing.T) {
	org := Organization("Seed Shop", "")
	_, ok := org["url"]
	assert.False(t, ok)
	assert.Equal(t, "https://example.com", Organization("Seed Shop", "https://example.com")["url"])
}

func TestNewMeta(t *testing.T) {
	m := NewMeta("Shop", "Seeds", "https://example.com/")
	assert.Equal(t, "website", m.OG.Type)
	assert.Equal(t, "Shop", m.OG.Title)
	assert.Equal(t, "Seeds", m.OG.Description)
	assert.Equal(t, "https://example.com/", m.Canonical)
}

func TestCatalogItemsNil(t *testing.T) {
	assert.Nil(t, CatalogItems(nil))
}
