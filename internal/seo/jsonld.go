package seo

import (
	"encoding/json"
	"strings"

	"finitefield.org/seed-web/internal/hierarchy"
	"finitefield.org/seed-web/internal/straindata"
)

// JSON marshals v to a compact JSON string. It returns an empty string on error.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Organization returns a minimal Organization schema.
func Organization(name, url string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	return m
}

// CatalogItem is one described strain.
type CatalogItem struct {
	Name        string
	Description string
}

// CatalogItems lists the described leaf strains of a dataset in tree order.
// Groupings and undescribed names are left out.
func CatalogItems(ds *straindata.Dataset) []CatalogItem {
	if ds == nil {
		return nil
	}
	tree := ds.Tree()
	tree.ExpandAll()
	var items []CatalogItem
	tree.Walk(func(n *hierarchy.Node) {
		if n.Grouping {
			return
		}
		text, ok := ds.Index.Lookup(n.Name)
		if !ok {
			return
		}
		items = append(items, CatalogItem{Name: n.Name, Description: text})
	})
	return items
}

// Catalog builds a schema.org ItemList of products. It returns nil for an
// empty list.
func Catalog(name string, items []CatalogItem) map[string]any {
	if len(items) == 0 {
		return nil
	}
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"item": map[string]any{
				"@type":       "Product",
				"name":        it.Name,
				"description": plain(it.Description),
			},
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "ItemList",
		"name":            name,
		"numberOfItems":   len(items),
		"itemListElement": el,
	}
}

// plain drops inline markdown emphasis markers.
func plain(s string) string {
	return strings.NewReplacer("**", "", "__", "", "*", "", "`", "").Replace(s)
}
