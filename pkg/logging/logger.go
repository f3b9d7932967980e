// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging builds the slog pipeline shared by Switchyard
// processes.
//
// The coordinator installs one Logger as the process default at boot;
// every slog call in the engine, the handlers, and the snapshot layer
// then flows through the sinks configured here. A sink is one of:
//
//   - stderr, text or JSON, on by default
//   - a daily log file under Config.LogDir, always JSON
//   - a LogExporter, the seam enterprise builds use for log shipping
//
// # Coordinator Usage
//
// The server enables JSON stderr plus optional file output, driven by
// the LOG_LEVEL and COORDINATOR_LOG_DIR environment variables:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
//	    LogDir:  os.Getenv("COORDINATOR_LOG_DIR"),
//	    Service: "coordinator",
//	    JSON:    true,
//	})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// After SetDefault, a lock conflict logged deep in the engine as
//
//	slog.Warn("lock held", "component", name, "holder", opID)
//
// lands in every configured sink with the service attribute attached.
//
// # Choosing a Level
//
// Debug is for tracing a single request through the engine: lock
// acquisition order, broadcast fan-out, snapshot encode timings. Info
// marks the events an operator reads after the fact, state
// transitions, snapshot saves, watch sessions opening and closing.
// Warn flags degraded behavior the coordinator survives, a slow watch
// subscriber being dropped or the dev fallback JWT secret being used.
// Error is for failed writes that lose nothing durable, a snapshot
// save that will be retried on the next tick.
//
// # What Not to Log
//
// Nothing here redacts. Bearer tokens, JWT secrets, and snapshot
// contents must not reach a log call: log "token_present", never the
// token.
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the minimum-severity filter applied to every sink.
type Level int

const (
	// LevelDebug traces execution: lock ordering, fan-out, timings.
	LevelDebug Level = iota

	// LevelInfo records the operational narrative: server start,
	// operation created, snapshot saved.
	LevelInfo

	// LevelWarn flags survivable degradation: subscriber dropped,
	// fallback secret in use.
	LevelWarn

	// LevelError records failed work the coordinator continues past.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", or "ERROR".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level.
//
// Matching is case-insensitive and accepts the short forms that appear
// in deployment manifests: "debug", "info", "warn", "warning",
// "error". Unrecognized values degrade to LevelInfo rather than
// silencing or flooding the logs over a typo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config selects the sinks and the level filter. The zero value is a
// usable default: Info and above, text format, stderr only.
type Config struct {
	// Level is the minimum severity that reaches any sink.
	Level Level

	// LogDir, when set, adds a file sink. The file is named
	// {Service}_{YYYY-MM-DD}.log, created under this directory with
	// 0750/0640 permissions, and always written as JSON. A leading ~
	// expands to the user's home directory.
	LogDir string

	// Service is stamped on every record as the "service" attribute
	// so aggregated logs can be filtered by component. The
	// coordinator and the CLI set it to their own names.
	Service string

	// JSON switches the stderr sink from text to JSON. File output
	// is JSON regardless.
	JSON bool

	// Quiet drops the stderr sink entirely. Tests use this to keep
	// log noise out of captured command output while still exercising
	// the file sink.
	Quiet bool

	// Exporter, when non-nil, receives every record at or above
	// Level as a LogEntry. This is the log-shipping seam: the open
	// source build leaves it nil, enterprise builds plug in their
	// uploader the same way ServiceOptions carries their auth and
	// audit hooks.
	Exporter LogExporter
}

// LogExporter ships log entries to an external system.
//
// Export is called once per record from a short-lived goroutine, so
// implementations must be safe for concurrent use and should buffer
// internally rather than block. Flush drains the buffer and Close
// releases connections; the Logger calls both, in that order, from
// Close during shutdown. Export errors are dropped: a broken log
// shipper must never take down the coordinator.
type LogExporter interface {
	Export(ctx context.Context, entry LogEntry) error
	Flush(ctx context.Context) error
	Close() error
}

// LogEntry is the sink-independent form of one log record, handed to
// LogExporter implementations.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string
	Attrs     map[string]any
}

// Logger fans log records out to the configured sinks.
//
// Use With to derive a logger that stamps request- or session-scoped
// attributes on every record:
//
//	sessLogger := logger.With("session_id", id, "user", username)
//	sessLogger.Info("watch opened")
//	sessLogger.Info("watch closed")
//
// Derived loggers share the parent's file handle and exporter, so only
// the root logger should be Closed.
type Logger struct {
	slog     *slog.Logger
	config   Config
	file     *os.File
	exporter LogExporter
	mu       sync.Mutex
}

// New builds a Logger from config. The returned logger owns the file
// handle and the exporter; release them with Close.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.slogLevel()}

	var sinks []slog.Handler
	if !config.Quiet {
		if config.JSON {
			sinks = append(sinks, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			sinks = append(sinks, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	logger := &Logger{
		config:   config,
		exporter: config.Exporter,
	}

	if config.LogDir != "" {
		if file := openLogFile(config.LogDir, config.Service); file != nil {
			logger.file = file
			sinks = append(sinks, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(sinks) {
	case 0:
		// Quiet with no usable LogDir still needs somewhere to put
		// an Error.
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = sinks[0]
	default:
		handler = &teeHandler{sinks: sinks}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	logger.slog = slog.New(handler)
	return logger
}

// openLogFile creates the dated log file for service under dir,
// returning nil when the directory or file cannot be created. Logging
// then proceeds without the file sink; a server must not refuse to
// start over an unwritable log directory.
func openLogFile(dir, service string) *os.File {
	dir = expandHome(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "switchyard"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// Default returns an Info-level, stderr-only logger for CLI use.
func Default() *Logger {
	return New(Config{
		Level:   LevelInfo,
		Service: "switchyard",
	})
}

// Debug logs at Debug level. Args are slog key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, args...)
}

// Info logs at Info level.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs at Warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, args...)
}

// Error logs at Error level.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, msg, args...)
}

// With returns a derived logger carrying additional attributes. The
// parent is not modified; file handle and exporter are shared.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
	}
}

// Slog returns the underlying slog.Logger. Long-running services
// install it as the process default so library code logging through
// slog shares the same sinks:
//
//	slog.SetDefault(logger.Slog())
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes the exporter, closes it, then syncs and closes the log
// file. It returns the first error and attempts every step regardless.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// log writes to the slog sinks synchronously and to the exporter from
// a goroutine, so a slow shipper never stalls a request handler.
func (l *Logger) log(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.exporter != nil && level >= l.config.Level {
		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     attrMap(args),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = l.exporter.Export(ctx, entry)
		}()
	}
}

// teeHandler duplicates each record across the configured sinks, which
// lets stderr stay human-readable text while the file gets JSON.
type teeHandler struct {
	sinks []slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, r.Level) {
			if err := sink.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		sinks[i] = sink.WithAttrs(attrs)
	}
	return &teeHandler{sinks: sinks}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		sinks[i] = sink.WithGroup(name)
	}
	return &teeHandler{sinks: sinks}
}

// expandHome resolves a leading ~ against the user's home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// attrMap folds slog-style variadic args into the map shipped to
// exporters. Keys that are not strings are skipped, matching slog's
// own tolerance for malformed pairs.
func attrMap(args []any) map[string]any {
	attrs := make(map[string]any)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs[key] = args[i+1]
		}
	}
	return attrs
}

// BufferedExporter is an in-memory LogExporter for tests that need to
// assert on shipped entries.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter returns an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{}
}

// Export appends the entry to the buffer.
func (e *BufferedExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op; entries are already in memory.
func (e *BufferedExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of everything exported so far.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

var _ LogExporter = (*BufferedExporter)(nil)
