package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogDir is the directory, relative to the base dir, that holds run logs.
const LogDir = "logs"

// Options configures New.
type Options struct {
	Level   string    // debug, info, warn, error
	Console io.Writer // nil disables console output
	BaseDir string    // empty disables the log file
	Now     func() time.Time
}

// Logger bundles a configured *slog.Logger with the log file it writes to.
type Logger struct {
	*slog.Logger
	Path string // empty when logging to console only
	file *os.File
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// New builds a logger writing text records to the console and to
// <BaseDir>/logs/bot_YYYYMMDD_HHMMSS.log. If the file cannot be created the
// logger falls back to the console and logs a warning.
func New(opts Options) *Logger {
	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}

	l := &Logger{}
	var fileErr error
	if opts.BaseDir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		f, path, err := openLogFile(opts.BaseDir, now())
		if err != nil {
			fileErr = err
		} else {
			l.file = f
			l.Path = path
			writers = append(writers, f)
		}
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}
	inner := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	l.Logger = slog.New(NewCorrelationHandler(inner))

	if fileErr != nil {
		l.Warn("log file unavailable, logging to console only", "error", fileErr)
	}
	return l
}

// FileName returns the log file name for a run started at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("bot_%s.log", t.Format("20060102_150405"))
}

func openLogFile(baseDir string, t time.Time) (*os.File, string, error) {
	dir := filepath.Join(baseDir, LogDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, FileName(t))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open log file: %w", err)
	}
	return f, path, nil
}

// ParseLevel maps a level name to slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
