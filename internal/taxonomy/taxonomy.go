// Package taxonomy serves the research-area taxonomy used for opportunity
// brainstorming and keyword selection.
package taxonomy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed taxonomy.json
var embeddedTaxonomy []byte

// Taxonomy maps broad research categories to their specific areas.
type Taxonomy map[string][]string

// Load returns the taxonomy, from TAXONOMY_PATH if set and from the
// embedded default otherwise. An unreadable or malformed override file is
// an error rather than a silent fallback.
func Load() (Taxonomy, error) {
	raw := embeddedTaxonomy
	if path := os.Getenv("TAXONOMY_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
		}
		raw = data
	}

	var t Taxonomy
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("taxonomy is empty")
	}
	return t, nil
}

// Categories returns the category names sorted alphabetically.
func (t Taxonomy) Categories() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Areas returns the specific areas under a category, or nil when the
// category does not exist.
func (t Taxonomy) Areas(category string) []string {
	return t[category]
}
