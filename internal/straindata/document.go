package straindata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"finitefield.org/seed-web/internal/hierarchy"
)

// FallbackText is published for names without a description entry.
const FallbackText = "No information available for this strain."

// Document is the on-disk dataset shape.
type Document struct {
	StrainTree *hierarchy.Raw `json:"strainTree" yaml:"strainTree"`
	Strains    []Strain       `json:"strains" yaml:"strains"`
}

// Strain is one description entry.
type Strain struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// DescriptionKind classifies a published description.
type DescriptionKind string

const (
	DescriptionFound      DescriptionKind = "found"
	DescriptionMissing    DescriptionKind = "missing"
	DescriptionCollection DescriptionKind = "collection"
)

// Description is the text published for the anchor node of a pass.
type Description struct {
	Name string          `json:"name"`
	Text string          `json:"text"`
	Kind DescriptionKind `json:"kind"`
}

// Index maps strain names to description text.
type Index struct {
	entries map[string]string
}

// NewIndex flattens the strains list. Later duplicates overwrite earlier ones.
func NewIndex(strains []Strain) *Index {
	idx := &Index{entries: make(map[string]string, len(strains))}
	for _, s := range strains {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		idx.entries[name] = strings.TrimSpace(s.Description)
	}
	return idx
}

// Len returns the number of distinct names.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.entries)
}

// Lookup returns the description for name. Empty descriptions count as absent.
func (i *Index) Lookup(name string) (string, bool) {
	if i == nil {
		return "", false
	}
	text, ok := i.entries[strings.TrimSpace(name)]
	if !ok || text == "" {
		return "", false
	}
	return text, true
}

// Has reports whether name has a non-empty description.
func (i *Index) Has(name string) bool {
	_, ok := i.Lookup(name)
	return ok
}

// Text returns the description for name or FallbackText. It never returns an
// empty string.
func (i *Index) Text(name string) string {
	if text, ok := i.Lookup(name); ok {
		return text
	}
	return FallbackText
}

// Describe builds the description published for a node.
func (i *Index) Describe(name string, grouping bool) Description {
	name = strings.TrimSpace(name)
	if grouping {
		return Description{
			Name: name,
			Text: CollectionText(name),
			Kind: DescriptionCollection,
		}
	}
	if text, ok := i.Lookup(name); ok {
		return Description{Name: name, Text: text, Kind: DescriptionFound}
	}
	return Description{Name: name, Text: FallbackText, Kind: DescriptionMissing}
}

// CollectionText is published for grouping nodes.
func CollectionText(name string) string {
	return fmt.Sprintf("%s is a collection of strains. Click on individual strain names to see detailed information.", name)
}

// Dataset is a successfully loaded document.
type Dataset struct {
	Source string
	Root   hierarchy.Raw
	Index  *Index
}

// Tree builds a fresh hierarchy. Each call returns an independent tree with
// its own identity counter.
func (d *Dataset) Tree() *hierarchy.Tree {
	return hierarchy.Build(d.Root, d.Index.Has)
}

// Format selects the decoder for a payload.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// DetectFormat picks YAML for .yaml/.yml references or yaml content types and
// JSON otherwise.
func DetectFormat(ref, contentType string) Format {
	if strings.Contains(strings.ToLower(contentType), "yaml") {
		return FormatYAML
	}
	p := ref
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a payload and validates the root.
func Decode(source string, payload []byte, format Format) (*Dataset, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(payload, &doc)
	default:
		dec := json.NewDecoder(bytes.NewReader(payload))
		err = dec.Decode(&doc)
	}
	if err != nil {
		return nil, &MalformedDataError{Source: source, Reason: "decode failed", Err: err}
	}
	if doc.StrainTree == nil {
		return nil, &MalformedDataError{Source: source, Reason: "missing strainTree"}
	}
	if strings.TrimSpace(doc.StrainTree.Name) == "" {
		return nil, &MalformedDataError{Source: source, Reason: "strainTree has no name"}
	}
	return &Dataset{
		Source: source,
		Root:   *doc.StrainTree,
		Index:  NewIndex(doc.Strains),
	}, nil
}
