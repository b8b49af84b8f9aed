package debug

// Heap metrics logger enabled when config.Debug is true. A long catalog scan
// holds scaled template precomps and capture frames; this helps spot a cache
// that never stops growing.

import (
	"log/slog"
	"runtime"
	"time"
)

// StartMemLogger launches a goroutine that logs heap stats every interval.
func StartMemLogger(interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		var ms runtime.MemStats
		for range t.C {
			runtime.ReadMemStats(&ms)
			logger.Info("memstats",
				slog.Uint64("heap_alloc", ms.HeapAlloc),
				slog.Uint64("heap_sys", ms.HeapSys),
				slog.Uint64("heap_objects", ms.HeapObjects),
				slog.Uint64("total_alloc", ms.TotalAlloc),
				slog.Uint64("num_gc", uint64(ms.NumGC)),
			)
		}
	}()
}
