package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *ResultStore {
	t.Helper()
	return NewResultStore(filepath.Join(t.TempDir(), "results.json"), nil)
}

func TestLoadMissingDocumentIsEmpty(t *testing.T) {
	s := newTestStore(t)
	ps := s.Load()
	if len(ps.Profiles) != 0 || ps.ActiveProfile != DefaultProfile {
		t.Fatalf("expected empty store, got %+v", ps)
	}
}

func TestLoadCorruptedDocumentIsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	ps := s.Load()
	if len(ps.Profiles) != 0 {
		t.Fatalf("corrupted document should load empty, got %+v", ps)
	}
}

func TestLoadWrapsLegacyFlatDocument(t *testing.T) {
	s := newTestStore(t)
	legacy := `{"counts":{"Fizz":2},"timestamp":"2024-01-01T00:00:00Z","scanned":1,"total":1}`
	if err := os.WriteFile(s.Path(), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	ps := s.Load()
	if ps.ActiveProfile != DefaultProfile {
		t.Fatalf("legacy doc should activate default, got %q", ps.ActiveProfile)
	}
	res, ok := ps.Result(DefaultProfile)
	if !ok {
		t.Fatal("legacy payload not wrapped under default profile")
	}
	if res.Counts["Fizz"] != 2 {
		t.Fatalf("legacy counts lost: %+v", res.Counts)
	}
}

func TestUpsertProfileIsolation(t *testing.T) {
	s := newTestStore(t)
	resA := BuildResult([]string{"Fizz"}, map[string]int{"Fizz": 1}, 1, MatchModeMultiScale, true, time.Unix(100, 0))
	resB := BuildResult([]string{"Buzz"}, map[string]int{"Buzz": 3}, 1, MatchModeMultiScale, true, time.Unix(200, 0))

	if err := s.Upsert("a", resA); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	rawA := s.Load().Profiles["a"]
	if err := s.Upsert("b", resB); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	ps := s.Load()
	if ps.ActiveProfile != "b" {
		t.Fatalf("active profile = %q, want b", ps.ActiveProfile)
	}
	if !bytes.Equal(ps.Profiles["a"], rawA) {
		t.Fatalf("profile a mutated by upsert of b:\nbefore %s\nafter  %s", rawA, ps.Profiles["a"])
	}
	gotA, ok := ps.Result("a")
	if !ok || gotA.Counts["Fizz"] != 1 {
		t.Fatalf("profile a payload changed: %+v", gotA)
	}
}

func TestUpsertPreservesForeignProfileFields(t *testing.T) {
	s := newTestStore(t)
	// Simulate a payload written by the dashboard with an extra key.
	doc := `{"profiles":{"other":{"counts":{"Fizz":1},"validatedSteps":[1,2]}},"activeProfile":"other"}`
	if err := os.WriteFile(s.Path(), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	res := BuildResult([]string{"Buzz"}, map[string]int{"Buzz": 1}, 1, MatchModeExact, true, time.Now())
	if err := s.Upsert("mine", res); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	var reread map[string]json.RawMessage
	raw, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &reread); err != nil {
		t.Fatalf("document not valid JSON after upsert: %v", err)
	}
	var profiles map[string]map[string]json.RawMessage
	if err := json.Unmarshal(reread["profiles"], &profiles); err != nil {
		t.Fatal(err)
	}
	if _, ok := profiles["other"]["validatedSteps"]; !ok {
		t.Fatal("foreign field validatedSteps dropped from untouched profile")
	}
}

func TestUpsertMirrorsActivePayloadTopLevel(t *testing.T) {
	s := newTestStore(t)
	res := BuildResult([]string{"Fizz"}, map[string]int{"Fizz": 2}, 1, MatchModeMultiScale, true, time.Unix(300, 0))
	if err := s.Upsert("main", res); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	raw, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	var top struct {
		Counts        map[string]int `json:"counts"`
		ActiveProfile string         `json:"activeProfile"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		t.Fatal(err)
	}
	if top.ActiveProfile != "main" || top.Counts["Fizz"] != 2 {
		t.Fatalf("top-level mirror missing: %+v", top)
	}
}

func TestUpsertLeavesNoTempFileBehind(t *testing.T) {
	s := newTestStore(t)
	res := BuildResult(nil, map[string]int{}, 0, MatchModeExact, true, time.Now())
	if err := s.Upsert("p", res); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind after rename")
	}
}
