// Package logging builds the process logger: JSON records to a size-rotated
// file when a log file is configured, text records to stderr otherwise.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	DefaultMaxSizeMB = 10
	DefaultMaxFiles  = 5
)

// ParseLevel parses debug, info, warn or error. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// Options configures New.
type Options struct {
	Level string
	// File, if set, receives JSON records and is rotated by size.
	File      string
	MaxSizeMB int
	MaxFiles  int
	// Stderr receives text records when File is empty. Defaults to os.Stderr.
	Stderr io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger and a closer that must be called once logging is
// done.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.File == "" {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nopCloser{}, nil
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeMB
	}
	maxFiles := opts.MaxFiles
	if maxFiles < 0 {
		maxFiles = DefaultMaxFiles
	}
	w, err := NewRotatingFileWriter(opts.File, maxSize, maxFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts)), w, nil
}
