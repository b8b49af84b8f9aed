// Package catalog loads the external zones document and flattens it into an
// ordered, name-deduplicated list of scan targets.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Target is one creature to scan for. Immutable once loaded.
type Target struct {
	ID      int
	Name    string
	Step    int
	Zone    string
	Subzone string
	Image   string
}

// Document mirrors the producer's JSON layout: zones contain subzones,
// subzones contain creatures. Key names are fixed by the external producer.
type Document struct {
	Zones []zoneEntry `json:"zones"`
}

type zoneEntry struct {
	Zone     string         `json:"zone"`
	Subzones []subzoneEntry `json:"souszones"`
}

type subzoneEntry struct {
	Subzone   string         `json:"souszone"`
	Creatures []monsterEntry `json:"archimonstres"`
}

type monsterEntry struct {
	ID    int    `json:"id"`
	Name  string `json:"nom"`
	Step  int    `json:"etape"`
	Image string `json:"img"`
}

// Load reads and parses the zones document at path and returns the flattened
// target list. Targets with a blank name are skipped; duplicated names keep
// only their first appearance, preserving document order.
func Load(path string) ([]Target, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return Flatten(&doc), nil
}

// Flatten walks zones -> subzones -> creatures and gathers unique targets in
// first-appearance order.
func Flatten(doc *Document) []Target {
	if doc == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var targets []Target
	for _, z := range doc.Zones {
		for _, sz := range z.Subzones {
			for _, m := range sz.Creatures {
				name := strings.TrimSpace(m.Name)
				if name == "" {
					continue
				}
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				targets = append(targets, Target{
					ID:      m.ID,
					Name:    name,
					Step:    m.Step,
					Zone:    z.Zone,
					Subzone: sz.Subzone,
					Image:   m.Image,
				})
			}
		}
	}
	return targets
}

// Names returns the target names in order.
func Names(targets []Target) []string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	return names
}
