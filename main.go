package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/mbeaufort/archi-scan-go/app"
)

func main() {
	profile := flag.String("profile", "", "results profile to write (overrides ARCHI_PROFILE)")
	configPath := flag.String("config", "", "optional config file, relative to the base directory")
	debug := flag.Bool("debug", false, "enable debug logging and runtime metrics")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)

	os.Exit(app.Run(app.Options{
		Profile:    *profile,
		ConfigPath: *configPath,
		Debug:      *debug,
	}, logger))
}
