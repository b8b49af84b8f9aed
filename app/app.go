// Package app wires the scanner together: configuration, catalog, matcher,
// capture, input, persistence and the session loop.
package app

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mbeaufort/archi-scan-go/config"
	"github.com/mbeaufort/archi-scan-go/debug"
	"github.com/mbeaufort/archi-scan-go/domain/scan"
	"github.com/mbeaufort/archi-scan-go/store"
)

// Options carry the command-line inputs.
type Options struct {
	Profile    string // explicit profile, overrides every other source
	ConfigPath string // optional config file, relative paths resolve in baseDir
	Debug      bool
}

// Run executes one full scan session and returns the process exit code.
// Completed and interrupted runs exit 0 so checkpointed results are treated
// as usable; only setup failures and fatal session errors exit 1.
func Run(opts Options, logger *slog.Logger) int {
	baseDir := resolveBaseDir()

	if _, err := os.Stat(filepath.Join(baseDir, config.TemplateFile)); err != nil {
		logger.Error("reference icon missing", "file", config.TemplateFile, "dir", baseDir)
		return 1
	}
	if _, err := os.Stat(filepath.Join(baseDir, config.CatalogFile)); err != nil {
		logger.Error("creature catalog missing", "file", config.CatalogFile, "dir", baseDir)
		return 1
	}

	cfg := loadConfig(opts, baseDir, logger)
	profile := store.ResolveProfile(firstNonEmpty(opts.Profile, cfg.Profile), baseDir)
	logger.Info("starting scan",
		"profile", profile,
		"base_dir", baseDir,
		"multi_scale", cfg.UseMultiScale,
		"grayscale", cfg.Grayscale,
		"pack_mode", cfg.PackMode,
		"unbuffered_output", cfg.Unbuffered,
	)

	c, err := BuildContainer(cfg, logger, baseDir, profile)
	if err != nil {
		logger.Error("setup failed", "error", err)
		return 1
	}

	if cfg.Debug {
		debug.StartGoroutineLogger(5*time.Second, logger)
		debug.StartMemLogger(5*time.Second, logger)
	}

	c.Hotkeys.Start()
	defer c.Hotkeys.Stop()

	stop := make(chan struct{})
	defer close(stop)
	go scan.WatchFailSafe(c.Ctx, c.Driver.Location, c.Screen, stop)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			logger.Info("signal received, stopping after the current creature")
			c.Ctx.Abort(scan.AbortSignal)
		case <-stop:
		}
	}()

	switch c.Session.Run() {
	case scan.StateCompleted, scan.StateInterrupted:
		return 0
	default:
		return 1
	}
}

// resolveBaseDir prefers the override env var, then the executable's
// directory, then the working directory. The template, catalog, results and
// sibling config files all live there.
func resolveBaseDir() string {
	if dir := os.Getenv(config.EnvBaseDir); dir != "" {
		return dir
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// loadConfig reads the optional config file, then layers env overrides and
// command-line flags on top. A missing file is not an error.
func loadConfig(opts Options, baseDir string, logger *slog.Logger) *config.Config {
	path := opts.ConfigPath
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("config file unreadable, using defaults", "path", path, "error", err)
		cfg = config.DefaultConfig()
	}
	cfg.FromEnv()
	if opts.Debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Warn("config adjusted", "error", err)
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
