// Package cli implements the sb3min command-line interface.
//
// The CLI is built with cobra and logs through charmbracelet/log. Tables and
// status lines are styled with lipgloss; inspect --interactive runs a
// bubbletea program.
//
// # Commands
//
//   - compact: rewrite a project or sprite with short identifiers
//   - inspect: report identifier statistics for one or more files
//   - graph: write the identifier usage graph as DOT or SVG
//   - serve: expose compact and inspect over HTTP
//   - cache, config: manage the result cache and show the configuration
//
// # Logging
//
// -v enables debug logging, -vv also prints full error chains and -q keeps
// only warnings. The logger travels through context.Context so that code
// below the command layer can find it.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the CLI logger. Timestamps are only shown at debug
// level, where the time between hook events is what the user is after.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: level <= log.DebugLevel,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times one command and logs its outcome once.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg at info level with kv and the elapsed time, for example
// "compacted source=game.sb3 identifiers=42 duration=1.234s".
func (p *progress) done(msg string, kv ...any) {
	d := time.Since(p.start).Round(time.Millisecond)
	p.logger.Info(msg, append(kv, "duration", d)...)
}

type ctxKey struct{}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// loggerFromContext returns the logger set by the root command, or
// log.Default() for code run outside a command.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
