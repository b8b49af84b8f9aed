package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
)

// ProfileStore is the canonical in-memory form of the result document.
// Profile payloads stay raw so that fields written by other tools (the
// dashboard adds its own keys) survive a read-modify-write untouched.
type ProfileStore struct {
	Profiles      map[string]json.RawMessage
	ActiveProfile string
}

// Result decodes the payload stored under profile. ok is false when the
// profile is absent or its payload does not decode.
func (ps *ProfileStore) Result(profile string) (ScanResult, bool) {
	raw, found := ps.Profiles[profile]
	if !found {
		return ScanResult{}, false
	}
	var res ScanResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ScanResult{}, false
	}
	return res, true
}

// ResultStore performs checkpointed, atomic, profile-scoped persistence of
// scan results. A sibling lock file guards the read-modify-write cycle
// against the dashboard/proxy touching the same document.
type ResultStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewResultStore returns a store writing to path.
func NewResultStore(path string, logger *slog.Logger) *ResultStore {
	return &ResultStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Path returns the document location.
func (s *ResultStore) Path() string { return s.path }

// Load reads the whole document and normalizes it to the canonical profiled
// form. A legacy flat payload (top-level counts, no profiles map) is wrapped
// as the "default" profile. Missing, corrupted or unreadable documents yield
// an empty store rather than an error.
func (s *ResultStore) Load() *ProfileStore {
	empty := &ProfileStore{Profiles: map[string]json.RawMessage{}, ActiveProfile: DefaultProfile}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return empty
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		if s.logger != nil {
			s.logger.Warn("result document unreadable, starting empty", "path", s.path, "error", err)
		}
		return empty
	}

	if rawProfiles, ok := doc["profiles"]; ok {
		var profiles map[string]json.RawMessage
		if err := json.Unmarshal(rawProfiles, &profiles); err == nil {
			ps := &ProfileStore{Profiles: profiles, ActiveProfile: DefaultProfile}
			if rawActive, ok := doc["activeProfile"]; ok {
				var active string
				if err := json.Unmarshal(rawActive, &active); err == nil {
					if p := SanitizeProfile(active); p != "" {
						ps.ActiveProfile = p
					}
				}
			}
			if ps.Profiles == nil {
				ps.Profiles = map[string]json.RawMessage{}
			}
			return ps
		}
		return empty
	}

	// Legacy flat shape: a bare payload with top-level counts. Wrap it as
	// the default profile; never silently discard it.
	if _, ok := doc["counts"]; ok {
		return &ProfileStore{
			Profiles:      map[string]json.RawMessage{DefaultProfile: json.RawMessage(raw)},
			ActiveProfile: DefaultProfile,
		}
	}
	return empty
}

// Upsert replaces only the named profile's entry, marks it active and writes
// the whole document atomically (temp file, then rename). Every other
// profile's raw payload is embedded back unchanged. The active payload is
// mirrored at the top level for legacy direct readers.
func (s *ResultStore) Upsert(profile string, result ScanResult) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("store: lock %s: %w", s.lock.Path(), err)
	}
	defer func() { _ = s.lock.Unlock() }()

	ps := s.Load()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: encode payload: %w", err)
	}
	ps.Profiles[profile] = json.RawMessage(payload)
	ps.ActiveProfile = profile

	doc := map[string]json.RawMessage{}
	// Mirror the active payload's fields at top level.
	var mirror map[string]json.RawMessage
	if err := json.Unmarshal(payload, &mirror); err == nil {
		for k, v := range mirror {
			if k == "profiles" || k == "activeProfile" {
				continue
			}
			doc[k] = v
		}
	}
	rawProfiles, err := json.Marshal(ps.Profiles)
	if err != nil {
		return fmt.Errorf("store: encode profiles: %w", err)
	}
	rawActive, _ := json.Marshal(ps.ActiveProfile)
	doc["profiles"] = rawProfiles
	doc["activeProfile"] = rawActive

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return nil
}
