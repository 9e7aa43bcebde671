// Package logger builds the worker's structured slog logger. Output is JSON
// by default; when a log file is configured it is rotated by lumberjack,
// otherwise records go to stderr.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	// File enables rotated file output when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a logger and the closer for its output. The closer is a no-op
// for stderr.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		rotator, err := openRotatingFile(opts)
		if err != nil {
			return nil, nil, err
		}
		w, closer = rotator, rotator
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "json":
		h = slog.NewJSONHandler(w, handlerOpts)
	case "text":
		h = slog.NewTextHandler(w, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q: supported values are json, text", opts.Format)
	}
	return slog.New(h), closer, nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

func openRotatingFile(opts Options) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
		return nil, fmt.Errorf("creating log directory for %q: %w", opts.File, err)
	}
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
