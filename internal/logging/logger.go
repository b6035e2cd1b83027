// Package logging configures the process-wide slog logger and provides
// field helpers so log lines share attribute names.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	File       string `yaml:"file"`        // log file path (optional)
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of old log files to keep
	MaxAge     int    `yaml:"max_age"`     // days
	Console    bool   `yaml:"console"`     // also log to console
	JSON       bool   `yaml:"json"`        // JSON format instead of text

	// Output replaces stdout as the console writer. The CLI points it at
	// stderr so tables stay clean.
	Output io.Writer `yaml:"-"`
}

// Logger is a configured slog logger and the rotating file it owns
type Logger struct {
	config *Config
	file   io.Closer
	logger *slog.Logger
}

var (
	mu     sync.RWMutex
	global *Logger
)

// Initialize replaces the global logger and installs it as slog's default.
// A nil config logs info and above to stdout.
func Initialize(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{Level: "info", Console: true}
	}

	l, err := newLogger(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := global
	global = l
	mu.Unlock()

	slog.SetDefault(l.logger)
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

func newLogger(cfg *Config) (*Logger, error) {
	l := &Logger{config: cfg}

	var writers []io.Writer
	if cfg.Console || cfg.File == "" {
		if cfg.Output != nil {
			writers = append(writers, cfg.Output)
		} else {
			writers = append(writers, os.Stdout)
		}
	}
	if cfg.File != "" {
		if cfg.MaxSize < 0 || cfg.MaxBackups < 0 || cfg.MaxAge < 0 {
			return nil, fmt.Errorf("log rotation limits cannot be negative")
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		l.file = rotator
		writers = append(writers, rotator)
	}

	w := writers[0]
	if len(writers) > 1 {
		w = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.JSON {
		l.logger = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		l.logger = slog.New(slog.NewTextHandler(w, opts))
	}
	return l, nil
}

// parseLevel accepts slog level names plus "warning". Unknown names log at
// info.
func parseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func current() *slog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		return slog.Default()
	}
	return l.logger
}

// Close releases the global logger's file. Later writes reopen it.
func Close() error {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Close()
}

// With returns the global logger with attributes attached
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

func Debug(msg string, args ...any) { current().Debug(msg, args...) }

func Info(msg string, args ...any) { current().Info(msg, args...) }

func Warn(msg string, args ...any) { current().Warn(msg, args...) }

func Error(msg string, args ...any) { current().Error(msg, args...) }

// Infof logs a formatted message at info level
func Infof(format string, v ...any) {
	current().Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level and exits
func Fatalf(format string, v ...any) {
	current().Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}
