// Package store persists profile-keyed scan results and resolves the active
// profile. The on-disk document is shared with the dashboard and the REST
// proxy, so key names and the legacy top-level mirror are load-bearing.
package store

import (
	"time"
)

// MatchMode values recorded in the result payload.
const (
	MatchModeMultiScale = "ncc_multiscale"
	MatchModeExact      = "ncc_exact"
)

// ScanNote is embedded in every payload so direct file readers see the
// hotkey bindings that produced it.
const ScanNote = "F8=start (capture search bar). F10=pause/resume. Move mouse to a screen corner to abort."

// Duplicate describes a name counted more than once. Extra is count-1.
type Duplicate struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Extra int    `json:"extra"`
}

// ScanResult is the persisted outcome of one scan run. The needed, duplicates
// and total* fields are always derived from counts; they are never edited
// independently.
type ScanResult struct {
	Timestamp       string         `json:"timestamp"`
	Scanned         int            `json:"scanned"`
	Total           int            `json:"total"`
	Counts          map[string]int `json:"counts"`
	Needed          []string       `json:"needed"`
	Duplicates      []Duplicate    `json:"duplicates"`
	TotalDuplicates int            `json:"totalDuplicates"`
	TotalFound      int            `json:"totalFound"`
	TotalFoundItems int            `json:"totalFoundItems"`
	Note            string         `json:"note"`
	MatchMode       string         `json:"matchMode"`
	Grayscale       bool           `json:"grayscale"`
}

// BuildResult derives a ScanResult from the accumulated counts. names fixes
// the derivation order (and the expected total); only names already present
// in counts contribute to needed/duplicates.
func BuildResult(names []string, counts map[string]int, scanned int, matchMode string, grayscale bool, now time.Time) ScanResult {
	res := ScanResult{
		Timestamp: now.UTC().Format(time.RFC3339),
		Scanned:   scanned,
		Total:     len(names),
		Counts:    make(map[string]int, len(counts)),
		Needed:    []string{},
		Note:      ScanNote,
		MatchMode: matchMode,
		Grayscale: grayscale,
	}
	// Snapshot: checkpoints must not see counts added after they were written.
	for name, count := range counts {
		res.Counts[name] = count
	}
	res.Duplicates = []Duplicate{}
	for _, name := range names {
		count, ok := counts[name]
		if !ok {
			continue
		}
		if count <= 0 {
			res.Needed = append(res.Needed, name)
			continue
		}
		res.TotalFound++
		res.TotalFoundItems += count
		if count > 1 {
			extra := count - 1
			res.Duplicates = append(res.Duplicates, Duplicate{Name: name, Count: count, Extra: extra})
			res.TotalDuplicates += extra
		}
	}
	return res
}
