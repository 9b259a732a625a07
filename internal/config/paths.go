// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
)

// Paths resolves the on-disk layout under a writable data directory,
// honoring the SECURE_WRAPPER_* environment overrides documented for
// tests: SECURE_WRAPPER_CONFIG, SECURE_WRAPPER_AUDIT,
// SECURE_WRAPPER_REPLAY_DIR. SECURE_WRAPPER_RATE and
// SECURE_WRAPPER_CALENDAR_RATE override the counter file paths.
type Paths struct {
	ConfigFile        string
	AuditLog          string
	ReplayDir         string
	SendCounters      string
	CalendarCounters  string
}

// ResolvePaths computes the persisted state layout rooted at dataDir,
// applying any environment overrides on top.
func ResolvePaths(dataDir string) Paths {
	p := Paths{
		ConfigFile:       filepath.Join(dataDir, "config", "wrapper-config.json"),
		AuditLog:         filepath.Join(dataDir, "logs", "audit.jsonl"),
		ReplayDir:        filepath.Join(dataDir, "logs", "token-replay"),
		SendCounters:     filepath.Join(dataDir, "logs", "send-counters.json"),
		CalendarCounters: filepath.Join(dataDir, "logs", "calendar-counters.json"),
	}

	if v := os.Getenv("SECURE_WRAPPER_CONFIG"); v != "" {
		p.ConfigFile = v
	}
	if v := os.Getenv("SECURE_WRAPPER_AUDIT"); v != "" {
		p.AuditLog = v
	}
	if v := os.Getenv("SECURE_WRAPPER_REPLAY_DIR"); v != "" {
		p.ReplayDir = v
	}
	if v := os.Getenv("SECURE_WRAPPER_RATE"); v != "" {
		p.SendCounters = v
	}
	if v := os.Getenv("SECURE_WRAPPER_CALENDAR_RATE"); v != "" {
		p.CalendarCounters = v
	}

	return p
}

// EnsureDataDirs creates the directories backing p with tight permissions:
// 0700 for the config directory (it will hold the secret-bearing config
// file at 0600), 0700 for the replay marker directory, and 0755 for the
// log directory (the audit log and counter files themselves carry no
// secrets, but are still created 0600 by their respective writers).
func EnsureDataDirs(p Paths) error {
	dirs := []struct {
		path string
		mode os.FileMode
	}{
		{filepath.Dir(p.ConfigFile), 0700},
		{p.ReplayDir, 0700},
		{filepath.Dir(p.AuditLog), 0755},
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d.path, d.mode); err != nil {
			return err
		}
	}
	return nil
}
