package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/mbeaufort/archi-scan-go/config"
)

// DefaultProfile is the persistence bucket used when nothing else resolves.
const DefaultProfile = "default"

// SanitizeProfile lower-cases name and strips everything outside
// [a-z0-9_-]. An empty result returns "".
func SanitizeProfile(name string) string {
	raw := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, ch := range raw {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '_', ch == '-':
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// siblingConfig is the subset of metamob.config.json the resolver cares
// about. The file belongs to the dashboard; any of the three keys may name
// the default profile.
type siblingConfig struct {
	Profile        string `json:"profile"`
	ActiveProfile  string `json:"activeProfile"`
	DefaultProfile string `json:"defaultProfile"`
}

// ResolveProfile picks the active persistence bucket with strict precedence:
// explicit argument, ARCHI_PROFILE, sibling config file, the result
// document's recorded activeProfile, then "default". An explicit argument is
// final: when it sanitizes to empty the default is returned directly, the
// other sources are never consulted. The remaining candidates fall through
// to the next source when they sanitize to empty.
func ResolveProfile(explicit, baseDir string) string {
	if strings.TrimSpace(explicit) != "" {
		if p := SanitizeProfile(explicit); p != "" {
			return p
		}
		return DefaultProfile
	}
	if p := SanitizeProfile(os.Getenv(config.EnvProfile)); p != "" {
		return p
	}
	if p := profileFromSiblingConfig(filepath.Join(baseDir, config.SiblingConfigFile)); p != "" {
		return p
	}
	if p := profileFromResults(filepath.Join(baseDir, config.ResultsFile)); p != "" {
		return p
	}
	return DefaultProfile
}

func profileFromSiblingConfig(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var cfg siblingConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ""
	}
	for _, candidate := range []string{cfg.Profile, cfg.ActiveProfile, cfg.DefaultProfile} {
		if p := SanitizeProfile(candidate); p != "" {
			return p
		}
	}
	return ""
}

func profileFromResults(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var doc struct {
		ActiveProfile string `json:"activeProfile"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return SanitizeProfile(doc.ActiveProfile)
}
