package main

import (
	"log/slog"
	"os"
)

// NewLogger returns a structured slog.Logger with the given level. Output is
// human-readable text on stdout so the lines read well next to the game
// window, unlike a service log.
func NewLogger(level slog.Leveler) *slog.Logger {
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
