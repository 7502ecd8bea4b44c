// Package logging wires decred/slog subsystem loggers to a rotating file
// backend (jrick/logrotate) plus stdout, the standard pairing used across
// the decred tooling ecosystem this repo's dependency stack is drawn from.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Backend owns the rotating log file and hands out per-subsystem loggers.
type Backend struct {
	rotator *rotator.Rotator
	writer  io.Writer
}

// New opens (creating if needed) a rotating log file at logDir/logFile and
// returns a Backend writing to both that file and stdout.
func New(logDir, logFile string, maxRolls int) (*Backend, error) {
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("logging: create log dir %q: %w", logDir, err)
	}
	r, err := rotator.New(filepath.Join(logDir, logFile), 10*1024, false, maxRolls)
	if err != nil {
		return nil, fmt.Errorf("logging: open rotator: %w", err)
	}
	return &Backend{
		rotator: r,
		writer:  io.MultiWriter(os.Stdout, r),
	}, nil
}

// Logger returns a subsystem logger tagged with the given short name
// ("SRV", "RM", "HDM", "BOT", ...), matching the decred convention of
// fixed-width subsystem tags in log lines.
func (b *Backend) Logger(subsystem string) slog.Logger {
	l := slog.NewBackend(b.writer).Logger(subsystem)
	l.SetLevel(slog.LevelInfo)
	return l
}

// ParseLevel maps a --log-level flag value (trace/debug/info/warn/error/
// critical/off) to a slog.Level, mirroring decred tooling's debuglevel
// convention. Callers apply the result per subsystem via
// Logger(...).SetLevel, since decred's per-subsystem flag can set
// different levels per tag.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return slog.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical":
		return slog.LevelCritical, nil
	case "off":
		return slog.LevelOff, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

// Close flushes and closes the rotating log file.
func (b *Backend) Close() {
	b.rotator.Close()
}
