// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging wraps log/slog with the two output shapes BlendVault
// needs: human-readable text on stderr for CLI runs, and JSON files
// under a log directory for anything long-lived.
//
//	log := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.blendvault/logs",
//	    Service: "vault",
//	})
//	defer log.Close()
//
//	log.Info("commit recorded", "uid", uid, "changed", n)
//
// With a LogDir set, both destinations receive every entry at or above
// the configured level; the file side is always JSON, named
// "{service}_{YYYY-MM-DD}.log". Quiet drops the stderr side, which
// keeps test output clean.
//
// Loggers are safe for concurrent use. Nothing here redacts content,
// so callers decide what is safe to log.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level orders severities Debug < Info < Warn < Error. Entries below
// the configured minimum are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the conventional upper-case name for the level.
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

// Config selects the outputs a Logger writes to. The zero value logs
// everything as text on stderr.
type Config struct {
	// Level is the minimum severity kept.
	Level Level

	// LogDir, when set, adds a JSON log file in this directory. A
	// leading ~ expands to the home directory, and the directory is
	// created if missing.
	LogDir string

	// Service names the component and is attached to every entry as
	// the "service" attribute. It also prefixes the log file name.
	Service string

	// JSON switches stderr from text to JSON. File output is JSON
	// either way.
	JSON bool

	// Quiet suppresses stderr. Entries still reach the file when
	// LogDir is set.
	Quiet bool
}

// Logger writes structured entries to stderr and, optionally, a file.
// Safe for concurrent use. Close it when a LogDir was configured.
type Logger struct {
	slog *slog.Logger
	file *os.File
	mu   sync.Mutex
}

// New builds a Logger for the config. Failures opening the log file
// or its directory degrade to stderr-only rather than erroring; the
// engine must keep running even when the log path is unwritable.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.slogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	l := &Logger{}
	if config.LogDir != "" {
		if file := openLogFile(config.LogDir, config.Service); file != nil {
			l.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet with no usable file: swallow everything.
		handler = slog.DiscardHandler
	case 1:
		handler = handlers[0]
	default:
		handler = teeHandler(handlers)
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	l.slog = slog.New(handler)
	return l
}

// Default returns a stderr text logger at Info level tagged with the
// "blendvault" service.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "blendvault"})
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger whose entries carry the extra key-value
// attributes. The parent is unchanged; both share the log file.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: l.file}
}

// Slog exposes the underlying slog.Logger for packages that take the
// standard interface.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, when one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	l.file = nil
	return nil
}

// openLogFile creates the log directory and opens today's log file
// for appending. Returns nil on any failure.
func openLogFile(dir, service string) *os.File {
	dir = expandHome(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "blendvault"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

// expandHome rewrites a leading ~ to the user's home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// teeHandler fans one record out to several handlers, which is how
// stderr stays text while the file stays JSON.
type teeHandler []slog.Handler

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(h))
	for i, handler := range h {
		out[i] = handler.WithAttrs(attrs)
	}
	return out
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(h))
	for i, handler := range h {
		out[i] = handler.WithGroup(name)
	}
	return out
}
