// Package logger wraps a process-wide slog.Logger. The level comes from the
// DEBUG or LOG_LEVEL environment variables unless Setup overrides it.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu   sync.RWMutex
	log  *slog.Logger
	file *os.File
)

func init() {
	log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: envLevel()}))
}

// Options controls where log records go.
type Options struct {
	// Verbose forces debug level regardless of the environment.
	Verbose bool
	// Quiet drops the console sink; used while the terminal UI owns stdout.
	Quiet bool
	// FilePath adds a plain-text file sink when set.
	FilePath string
}

// Setup replaces the process logger. Call Close when done if FilePath was set.
func Setup(opts Options) error {
	level := envLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var sinks []io.Writer
	if !opts.Quiet {
		sinks = append(sinks, os.Stdout)
	}

	var f *os.File
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return err
		}
		var err error
		f, err = os.OpenFile(opts.FilePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		sinks = append(sinks, f)
	}

	var w io.Writer = io.Discard
	if len(sinks) > 0 {
		w = io.MultiWriter(sinks...)
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	file = f
	log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

// Close flushes and closes the file sink, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: envLevel()}))
	return err
}

// Logger returns the current process logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// DebugEnabled reports whether debug records are emitted.
func DebugEnabled() bool {
	return Logger().Enabled(context.Background(), slog.LevelDebug)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func envLevel() slog.Level {
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return slog.LevelDebug
		}
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
