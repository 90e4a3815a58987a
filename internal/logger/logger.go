// Package logger provides the process-wide structured logger.
//
// It wraps log/slog with an atomically adjustable level gate so handlers
// and the ingestion pipeline can log without holding a logger reference.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN/WARNING, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	currentLevel atomic.Int32 // stores a slog.Level

	mu      sync.RWMutex
	output  io.Writer = os.Stdout
	format            = "text"
	slogger           = slog.New(slog.NewTextHandler(os.Stdout, nil))
)

// Init configures the logger from config. Invalid levels and formats fall
// back to INFO/text rather than failing startup.
func Init(cfg Config) error {
	mu.Lock()
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			mu.Unlock()
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		output = f
	}
	if f := strings.ToLower(cfg.Format); f == "json" || f == "text" {
		format = f
	}
	mu.Unlock()

	SetLevel(cfg.Level)
	return nil
}

// InitWithWriter points the logger at a custom writer. For tests.
func InitWithWriter(w io.Writer, level string) {
	mu.Lock()
	output = w
	mu.Unlock()
	SetLevel(level)
}

// SetLevel sets the minimum level. WARNING is accepted as an alias for
// WARN; unknown strings are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(slog.LevelDebug))
	case "INFO", "":
		currentLevel.Store(int32(slog.LevelInfo))
	case "WARN", "WARNING":
		currentLevel.Store(int32(slog.LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(slog.LevelError))
	default:
		return
	}
	reconfigure()
}

func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: slog.Level(currentLevel.Load())}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	slogger = slog.New(handler)
}

func getLogger() *slog.Logger {
	mu.RLock()
	l := slogger
	mu.RUnlock()
	return l
}

// Debug logs at debug level with structured fields:
// Debug("message", "key", value, ...)
func Debug(msg string, args ...any) {
	if slog.Level(currentLevel.Load()) > slog.LevelDebug {
		return
	}
	getLogger().Debug(msg, args...)
}

// Info logs at info level with structured fields.
func Info(msg string, args ...any) {
	if slog.Level(currentLevel.Load()) > slog.LevelInfo {
		return
	}
	getLogger().Info(msg, args...)
}

// Warn logs at warn level with structured fields.
func Warn(msg string, args ...any) {
	if slog.Level(currentLevel.Load()) > slog.LevelWarn {
		return
	}
	getLogger().Warn(msg, args...)
}

// Error logs at error level with structured fields.
func Error(msg string, args ...any) {
	getLogger().Error(msg, args...)
}

// With returns a slog.Logger with pre-bound attributes.
func With(args ...any) *slog.Logger {
	return getLogger().With(args...)
}
