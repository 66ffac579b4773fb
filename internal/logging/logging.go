// Package logging builds the daemon's slog logger.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrUnknownFormat is returned for a format other than json or text.
var ErrUnknownFormat = errors.New("logging: unknown format")

// Config selects the level, encoding and destination of log records.
type Config struct {
	// Level is one of debug, info, warn, error (default: info).
	Level string `json:"level" yaml:"level" toml:"level"`

	// Format is json or text (default: json).
	Format string `json:"format" yaml:"format" toml:"format"`

	// File, when set, receives the records instead of the fallback writer
	// and is rotated by size.
	File string `json:"file" yaml:"file" toml:"file"`

	// MaxSizeMB is the size at which File is rotated (default: 100).
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept. Zero keeps all.
	MaxBackups int `json:"max_backups" yaml:"max_backups" toml:"max_backups"`

	// MaxAgeDays removes rotated files older than this. Zero keeps all.
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `json:"compress" yaml:"compress" toml:"compress"`
}

// New builds a logger for cfg. Records go to fallback unless cfg.File is
// set. The returned close function releases the file, if any.
func New(cfg Config, fallback io.Writer) (*slog.Logger, func() error, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, fmt.Errorf("logging: level %q: %w", cfg.Level, err)
		}
	}

	w := fallback
	closeFn := func() error { return nil }
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = lj
		closeFn = lj.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		_ = closeFn()
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.Format)
	}

	return slog.New(h), closeFn, nil
}

// Setup builds a logger for cfg and installs it as the slog default.
func Setup(cfg Config, fallback io.Writer) (*slog.Logger, func() error, error) {
	logger, closeFn, err := New(cfg, fallback)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
