// Package console provides a terminal/file sink for the severity router.
//
// The sink renders accepted messages through Go's standard log/slog
// handlers, in logfmt or JSON, to stdout, stderr, or a file. It
// implements the router.Sink contract: the router's gate decides whether
// a message is observable at all, and the sink applies its own minimum
// level on top.
//
// # Basic Usage
//
//	sink, closer, err := console.New(console.DefaultConfig())
//	if err != nil {
//		panic(err)
//	}
//	if closer != nil {
//		defer closer.Close()
//	}
//
//	r := router.New(sink)
//	r.Emit(router.Path{"core"}, router.LevelInfo, "service started", "version", "1.0.0")
//	// Output: ... level=INFO msg="service started" component=core version=1.0.0
//
// # Format Selection
//
// When Format is left empty the sink picks logfmt on a terminal and JSON
// otherwise, so interactive runs stay readable while piped output stays
// machine-parseable.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geekxflood/logrouter/router"
	"github.com/mattn/go-isatty"
)

// Output format constants.
const (
	// FormatLogfmt renders key=value structured lines.
	// Example: time=2023-01-01T12:00:00Z level=INFO msg="hello" component=core
	FormatLogfmt = "logfmt"

	// FormatJSON renders machine-readable JSON objects, one per message.
	FormatJSON = "json"
)

// Config holds the console sink settings.
//
// All fields have sensible defaults and can be omitted for basic usage.
// Use DefaultConfig() to get a pre-configured instance.
type Config struct {
	// MinLevel sets the sink's own minimum accepted severity, applied on
	// top of the router's gate. Valid values: "debug", "info", "warn",
	// "error", or a decimal integer.
	// Default: "debug" (the sink defers entirely to the router's rules)
	MinLevel string `json:"min_level" yaml:"min_level"`

	// Format sets the output format. Valid values: "logfmt", "json", or
	// empty for terminal detection.
	Format string `json:"format" yaml:"format"`

	// Output sets the destination. Valid values: "stdout", "stderr", or a
	// file path. Directories are created automatically for file paths.
	// Default: "stdout"
	Output string `json:"output" yaml:"output"`

	// AddSource includes the captured call site in the rendered output.
	// Default: false
	AddSource bool `json:"add_source" yaml:"add_source"`
}

// DefaultConfig returns a console sink configuration with recommended
// defaults: debug minimum (router rules decide), terminal-detected
// format, stdout output, source information disabled.
func DefaultConfig() Config {
	return Config{
		MinLevel: "debug",
		Output:   "stdout",
	}
}

// Sink writes accepted messages through a slog handler.
type Sink struct {
	handler   slog.Handler
	min       router.Level
	addSource bool
}

// New creates a console sink from the provided configuration.
//
// The returned io.Closer is non-nil only when the output is a file; the
// caller owns it and must close it when the sink is no longer needed.
func New(config Config) (*Sink, io.Closer, error) {
	min := router.LevelDebug
	if strings.TrimSpace(config.MinLevel) != "" {
		parsed, err := router.ParseLevel(config.MinLevel)
		if err != nil {
			return nil, nil, err
		}
		min = parsed
	}

	var writer io.Writer
	var closer io.Closer
	var terminal bool
	switch strings.ToLower(config.Output) {
	case "stdout", "":
		writer = os.Stdout
		terminal = isatty.IsTerminal(os.Stdout.Fd())
	case "stderr":
		writer = os.Stderr
		terminal = isatty.IsTerminal(os.Stderr.Fd())
	default:
		file, err := openLogFile(config.Output)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		writer = file
		closer = file
	}

	format := strings.ToLower(config.Format)
	if format == "" {
		if terminal {
			format = FormatLogfmt
		} else {
			format = FormatJSON
		}
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	case FormatLogfmt:
		handler = slog.NewTextHandler(writer, opts)
	default:
		if closer != nil {
			closer.Close()
		}
		return nil, nil, fmt.Errorf("invalid log format: %q, must be one of: %s, %s",
			config.Format, FormatLogfmt, FormatJSON)
	}

	return &Sink{handler: handler, min: min, addSource: config.AddSource}, closer, nil
}

// MinLevel returns the sink's own minimum accepted severity.
func (s *Sink) MinLevel() router.Level {
	return s.min
}

// ShouldAccept applies the sink-local filter beyond the router's gate.
func (s *Sink) ShouldAccept(level router.Level, _ router.Path, _ string) bool {
	return level >= s.min
}

// Handle renders the message as a slog record and writes it through the
// configured handler.
func (s *Sink) Handle(msg router.Message) error {
	record := slog.NewRecord(time.Now(), slogLevel(msg.Level), msg.Text, 0)
	record.AddAttrs(slog.String("component", msg.Path.Key()))
	if msg.Context != "" {
		record.AddAttrs(slog.String("context", msg.Context))
	}
	if s.addSource && msg.Source != nil {
		record.AddAttrs(slog.String("source", fmt.Sprintf("%s:%d", msg.Source.File, msg.Source.Line)))
	}
	record.Add(msg.Attrs...)
	return s.handler.Handle(context.Background(), record)
}

// slogLevel maps router severities onto the slog scale. The named router
// points land exactly on their slog counterparts (-1000 -> -4, 0 -> 0,
// 1000 -> 4, 2000 -> 8); intermediate values interpolate.
func slogLevel(l router.Level) slog.Level {
	return slog.Level(int(l) / 250)
}

// openLogFile opens a log file for writing after validating the path and
// creating parent directories with safe permissions.
func openLogFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return nil, errors.New("log file path cannot be empty")
	}

	cleanPath := filepath.Clean(filePath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid log file path: contains directory traversal: %s", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	// Refuse symlinks and non-regular files.
	if info, err := os.Lstat(cleanPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return nil, fmt.Errorf("refusing to open symlink for log file: %s", cleanPath)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("log path must be a regular file: %s", cleanPath)
		}
	}

	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cleanPath, err)
	}
	return file, nil
}
