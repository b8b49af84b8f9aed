package config

import (
	"encoding/json"
	"os"
	"strings"
)

// Default file names inside the base data directory. The dashboard and the
// REST proxy read the same files, so these names are part of the contract.
const (
	TemplateFile      = "archimonsterImg.png"
	CatalogFile       = "archimonstres_par_zone.json"
	ResultsFile       = "results.json"
	SiblingConfigFile = "metamob.config.json"
)

// Environment variables honored by FromEnv.
const (
	EnvProfile    = "ARCHI_PROFILE"
	EnvBaseDir    = "ARCHI_BASE_DIR"
	EnvPackMode   = "ARCHI_PACK_MODE"
	EnvUnbuffered = "ARCHI_UNBUFFERED"
)

// Config holds runtime configuration for detection and scan behavior.
// Fields may be loaded from a JSON file and overridden by environment
// variables and command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Detection parameters
	UseMultiScale  bool      `json:"use_multiscale"`
	ScaleFactors   []float64 `json:"scale_factors"`
	Threshold      float64   `json:"threshold"`
	Stride         int       `json:"stride"`
	ExactThreshold float64   `json:"exact_threshold"`
	ExactStride    int       `json:"exact_stride"`
	MinTemplatePx  int       `json:"min_template_px"`
	IoUThreshold   float64   `json:"iou_threshold"`
	Grayscale      bool      `json:"grayscale"`

	// Scan loop timings (milliseconds)
	TypeIntervalMs int `json:"type_interval_ms"`
	SettleDelayMs  int `json:"settle_delay_ms"`
	PausePollMs    int `json:"pause_poll_ms"`

	// Persistence
	SaveEvery int `json:"save_every"`

	// Environment-driven (not persisted to the config file). The base
	// directory env var is consumed directly by the app's resolver.
	Profile    string `json:"-"`
	PackMode   bool   `json:"-"`
	Unbuffered bool   `json:"-"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:          false,
		UseMultiScale:  true,
		ScaleFactors:   []float64{0.75, 0.85, 1.0, 1.15, 1.3},
		Threshold:      0.88,
		Stride:         1,
		ExactThreshold: 0.95,
		ExactStride:    6,
		MinTemplatePx:  12,
		IoUThreshold:   0.6,
		Grayscale:      true,
		TypeIntervalMs: 20,
		SettleDelayMs:  1000,
		PausePollMs:    150,
		SaveEvery:      12,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if len(c.ScaleFactors) == 0 {
		c.ScaleFactors = DefaultConfig().ScaleFactors
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = 0.88
	}
	if c.Stride <= 0 {
		c.Stride = 1
	}
	if c.ExactThreshold <= 0 || c.ExactThreshold > 1 {
		c.ExactThreshold = 0.95
	}
	if c.ExactStride <= 0 {
		c.ExactStride = 6
	}
	if c.MinTemplatePx <= 0 {
		c.MinTemplatePx = 12
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		c.IoUThreshold = 0.6
	}
	if c.TypeIntervalMs <= 0 {
		c.TypeIntervalMs = 20
	}
	if c.SettleDelayMs <= 0 {
		c.SettleDelayMs = 1000
	}
	if c.PausePollMs <= 0 {
		c.PausePollMs = 150
	}
	if c.SaveEvery <= 0 {
		c.SaveEvery = 12
	}
	return nil
}

// FromEnv applies environment overrides onto c and returns it.
func (c *Config) FromEnv() *Config {
	if v := strings.TrimSpace(os.Getenv(EnvProfile)); v != "" {
		c.Profile = v
	}
	c.PackMode = strings.TrimSpace(os.Getenv(EnvPackMode)) == "1"
	c.Unbuffered = strings.TrimSpace(os.Getenv(EnvUnbuffered)) == "1"
	return c
}

// Load attempts to read configuration from the given JSON file path. If the
// file does not exist it returns DefaultConfig(). On JSON error it returns
// defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
