package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog wraps every structural problem found while loading a catalog
var ErrInvalidCatalog = errors.New("invalid catalog")

// Section represents an ordered group of audit fields sharing a legal basis
type Section struct {
	ID         string       `json:"id" yaml:"id"`
	Title      string       `json:"title" yaml:"title"`
	LegalBasis LegalRefs    `json:"legal_basis,omitempty" yaml:"legal_basis,omitempty"`
	Fields     []AuditField `json:"fields" yaml:"fields"`
}

// Catalog represents a versioned audit catalog for one regulatory framework
type Catalog struct {
	Version  string    `json:"catalog_version" yaml:"catalog_version"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// LoadCatalog reads a JSON or YAML catalog from disk and validates it
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data, filepath.Ext(path))
}

// ParseCatalog decodes catalog bytes; ext selects the codec (".yaml"/".yml" or JSON otherwise)
func ParseCatalog(data []byte, ext string) (*Catalog, error) {
	var c Catalog
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the required keys of every section and field
func (c *Catalog) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("%w: missing catalog_version", ErrInvalidCatalog)
	}
	if len(c.Sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalidCatalog)
	}
	seen := make(map[string]bool)
	for _, s := range c.Sections {
		if s.ID == "" {
			return fmt.Errorf("%w: section without id", ErrInvalidCatalog)
		}
		if s.Title == "" {
			return fmt.Errorf("%w: section %s without title", ErrInvalidCatalog, s.ID)
		}
		if len(s.Fields) == 0 {
			return fmt.Errorf("%w: section %s without fields", ErrInvalidCatalog, s.ID)
		}
		for _, f := range s.Fields {
			if f.ID == "" {
				return fmt.Errorf("%w: field without id in section %s", ErrInvalidCatalog, s.ID)
			}
			if seen[f.ID] {
				return fmt.Errorf("%w: duplicate field id %s", ErrInvalidCatalog, f.ID)
			}
			seen[f.ID] = true
			if f.Question == "" {
				return fmt.Errorf("%w: field %s without question", ErrInvalidCatalog, f.ID)
			}
			if f.Severity == "" {
				return fmt.Errorf("%w: field %s without severity", ErrInvalidCatalog, f.ID)
			}
		}
	}
	return nil
}

// FilterSections returns the sections whose id is in ids, preserving catalog order.
// An empty filter returns every section.
func (c *Catalog) FilterSections(ids []string) []Section {
	if len(ids) == 0 {
		return c.Sections
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Section
	for _, s := range c.Sections {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// FieldCount returns the number of audit fields across the given sections
func FieldCount(sections []Section) int {
	n := 0
	for _, s := range sections {
		n += len(s.Fields)
	}
	return n
}
