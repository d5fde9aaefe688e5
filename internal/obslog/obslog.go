// Package obslog provides the engine's subsystem loggers.
//
// Every internal package pulls its logger from here instead of
// constructing its own, so the log level stays centrally configurable
// through SetLevel. Every logger writes to os.Stderr.
package obslog

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	level   = log.InfoLevel
	loggers = map[string]*log.Logger{}
)

// SetLevel changes the level used for subsystem loggers created from now on,
// and retroactively updates already-created ones.
func SetLevel(l log.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	for _, lg := range loggers {
		lg.SetLevel(level)
	}
}

// For returns the shared logger for a subsystem name (decode, analyzer,
// mipmap, imgserver, ...), creating it on first use.
func For(subsystem string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if lg, ok := loggers[subsystem]; ok {
		return lg
	}
	lg := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          subsystem,
	})
	lg.SetLevel(level)
	loggers[subsystem] = lg
	return lg
}
