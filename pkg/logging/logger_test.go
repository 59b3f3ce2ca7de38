// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// readEntries closes the logger and decodes every JSON line from the
// single log file it wrote under dir.
func readEntries(t *testing.T, log *Logger, dir string) []map[string]any {
	t.Helper()
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one log file in %s, got %v (err %v)", dir, matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Quiet: true, LogDir: dir, Service: "vault"})

	log.Info("commit recorded", "uid", "20250101120000")

	entries := readEntries(t, log, dir)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["msg"] != "commit recorded" {
		t.Errorf("msg = %v", e["msg"])
	}
	if e["service"] != "vault" {
		t.Errorf("service = %v", e["service"])
	}
	if e["uid"] != "20250101120000" {
		t.Errorf("uid = %v", e["uid"])
	}
}

func TestFileNameCarriesService(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Quiet: true, LogDir: dir, Service: "mirror"})
	log.Info("up")
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "mirror_*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one mirror_*.log file, got %v", matches)
	}
}

func TestLevelFiltersEntries(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Quiet: true, LogDir: dir, Service: "vault", Level: LevelWarn})

	log.Debug("dropped")
	log.Info("dropped too")
	log.Warn("journal lag")
	log.Error("restore failed")

	entries := readEntries(t, log, dir)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["level"] != "WARN" || entries[1]["level"] != "ERROR" {
		t.Errorf("levels = %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestWithAddsAttributesToChildOnly(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Quiet: true, LogDir: dir, Service: "vault"})

	child := log.With("op_id", "op-7")
	child.Info("checkout complete")
	log.Info("plain")

	entries := readEntries(t, log, dir)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["op_id"] != "op-7" {
		t.Errorf("child entry missing op_id: %v", entries[0])
	}
	if _, ok := entries[1]["op_id"]; ok {
		t.Errorf("parent entry must not carry op_id: %v", entries[1])
	}
}

func TestQuietWithoutFileDiscards(t *testing.T) {
	log := New(Config{Quiet: true})
	// Nothing to assert beyond not panicking and a clean close.
	log.Info("into the void")
	log.Error("also gone")
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestUnwritableLogDirDegradesToStderr(t *testing.T) {
	// A file where the directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	log := New(Config{Quiet: true, LogDir: filepath.Join(blocker, "logs")})
	log.Info("still fine")
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDefault(t *testing.T) {
	log := Default()
	if log == nil || log.Slog() == nil {
		t.Fatal("Default must return a usable logger")
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Quiet: true, LogDir: dir, Service: "vault"})
	log.Info("once")
	if err := log.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cases := []struct {
		in   string
		want string
	}{
		{"~/.blendvault/logs", filepath.Join(home, ".blendvault/logs")},
		{"/var/log/blendvault", "/var/log/blendvault"},
		{"relative/logs", "relative/logs"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := expandHome(tc.in); got != tc.want {
			t.Errorf("expandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
