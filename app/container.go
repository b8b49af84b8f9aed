package app

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mbeaufort/archi-scan-go/capture"
	"github.com/mbeaufort/archi-scan-go/catalog"
	"github.com/mbeaufort/archi-scan-go/config"
	"github.com/mbeaufort/archi-scan-go/domain/match"
	"github.com/mbeaufort/archi-scan-go/domain/scan"
	"github.com/mbeaufort/archi-scan-go/hotkey"
	"github.com/mbeaufort/archi-scan-go/input"
	"github.com/mbeaufort/archi-scan-go/store"
)

// Container assembles the scanner's components around one session.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Profile string
	Screen  image.Rectangle

	Targets []catalog.Target
	Matcher *match.Matcher
	Grabber *capture.Grabber
	Driver  *input.Driver
	Store   *store.ResultStore
	Ctx     *scan.SessionContext
	Session *scan.Session
	Hotkeys *hotkey.Listener
}

// BuildContainer constructs all components from the resolved base directory.
// Side effects are limited to reading the template and catalog files.
func BuildContainer(cfg *config.Config, logger *slog.Logger, baseDir, profile string) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, Profile: profile}

	targets, err := catalog.Load(filepath.Join(baseDir, config.CatalogFile))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("app: catalog %s lists no creatures", config.CatalogFile)
	}
	c.Targets = targets

	c.Matcher, err = match.NewMatcher(filepath.Join(baseDir, config.TemplateFile), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	c.Screen, err = capture.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	c.Grabber = capture.NewGrabber(capture.SearchRegion(c.Screen), logger)

	c.Driver = input.NewDriver(input.DefaultActions(), time.Duration(cfg.TypeIntervalMs)*time.Millisecond, logger)
	c.Store = store.NewResultStore(filepath.Join(baseDir, config.ResultsFile), logger)
	c.Ctx = scan.NewSessionContext()

	settler := &scan.Settler{
		Delay:  time.Duration(cfg.SettleDelayMs) * time.Millisecond,
		Grab:   c.Grabber.Grab,
		Logger: logger,
	}
	c.Session = scan.NewSession(cfg, logger, c.Ctx, targets, c.Matcher, c.Grabber, c.Driver, c.Store, settler, profile)
	c.Hotkeys = hotkey.NewListener(c.Ctx, c.Driver.Location, logger)
	return c, nil
}
