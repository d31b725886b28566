package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Site is the storefront shell configuration read from site.yaml.
type Site struct {
	Name       string            `yaml:"name"`
	Tagline    string            `yaml:"tagline"`
	URL        string            `yaml:"url"`
	Colors     map[string]string `yaml:"colors"`
	StrainTree StrainTreeSection `yaml:"strainTree"`
}

// StrainTreeSection configures the genetics tree block.
type StrainTreeSection struct {
	Enabled     bool   `yaml:"enabled"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	DataPath    string `yaml:"dataPath"`
}

// DefaultSite is used when no site file exists.
func DefaultSite() Site {
	return Site{
		Name: "Seed Shop",
		StrainTree: StrainTreeSection{
			Enabled: true,
			Title:   "Our Genetics",
		},
	}
}

// LoadSite reads a site file. A missing file yields DefaultSite.
func LoadSite(path string) (Site, error) {
	site := DefaultSite()
	if strings.TrimSpace(path) == "" {
		return site, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return site, nil
	}
	if err != nil {
		return Site{}, fmt.Errorf("config: read site %s: %w", path, err)
	}
	return ParseSite(raw)
}

// ParseSite decodes site YAML over the defaults.
func ParseSite(raw []byte) (Site, error) {
	site := DefaultSite()
	if err := yaml.Unmarshal(raw, &site); err != nil {
		return Site{}, fmt.Errorf("config: parse site: %w", err)
	}
	site.Name = strings.TrimSpace(site.Name)
	site.URL = strings.TrimRight(strings.TrimSpace(site.URL), "/")
	site.StrainTree.Title = strings.TrimSpace(site.StrainTree.Title)
	site.StrainTree.DataPath = strings.TrimSpace(site.StrainTree.DataPath)
	if site.Name == "" {
		return Site{}, &ValidationError{fields: []string{"Site.Name"}}
	}
	return site, nil
}

// DataURL returns the section's data path, or fallback when it has none.
func (s Site) DataURL(fallback string) string {
	if s.StrainTree.DataPath != "" {
		return s.StrainTree.DataPath
	}
	return fallback
}
