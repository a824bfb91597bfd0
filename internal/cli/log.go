// Package cli implements the storagegraph command-line interface.
//
// The commands read device graphs from JSON or YAML files, plan the
// transition between two of them, draw the result with Graphviz and commit
// it. The CLI is built using cobra; output is styled with lipgloss and
// logging goes through charmbracelet/log.
//
// # Commands
//
//   - plan: print the ordered actions that turn one graph into another
//   - commit: confirm and execute a plan under the machine-wide lock
//   - render: draw a device graph or a plan as DOT, SVG or PNG
//   - check: validate graph files and show resize ranges
//   - cache: manage the plan and render cache
//
// # Configuration
//
// Settings come from a TOML file, see package config. Flags override it.
// --verbose (-v) switches to debug logging regardless of log_level.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs the completion of a step with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs e.g. "Loaded system.yaml and staging.yaml (12ms)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
