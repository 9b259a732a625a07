// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit implements the append-only JSON-lines audit trail. Every
// admission decision and policy outcome is recorded here; nothing in the
// system ever reads it back — it exists for operators and downstream log
// ingestion, not for runtime decisions.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Logger appends JSON-lines entries to a single file. Each Write call
// performs one os.File.Write of a single line; on POSIX, writes smaller
// than the pipe buffer are atomic, so concurrent writers never interleave
// partial lines. The in-process mutex additionally serializes writers
// within this one binary to keep the "no read path, append-only" contract
// simple to reason about.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if necessary) the audit log file at path in
// append mode, mode 0600.
func Open(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}
	return &Logger{file: file}, nil
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// Entry is the minimum shape of every audit record: a UTC ISO-8601
// timestamp, an action enum, and the authenticated principal. Handlers
// pass additional action-specific fields via the fields map.
type Entry struct {
	Action    string
	Principal string
	Fields    map[string]any
}

// Write appends one JSON object, leading with ts, action, principal, then
// any additional fields sorted by key. A map marshaled directly through
// encoding/json always comes out key-sorted, which would put "action"
// first; the line is hand-assembled instead so ts leads as documented.
func (l *Logger) Write(entry Entry) error {
	var line bytes.Buffer
	line.WriteByte('{')

	writeField(&line, "ts", time.Now().UTC().Format(time.RFC3339Nano))
	line.WriteByte(',')
	writeField(&line, "action", entry.Action)
	line.WriteByte(',')
	writeField(&line, "principal", entry.Principal)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line.WriteByte(',')
		if err := writeFieldValue(&line, k, entry.Fields[k]); err != nil {
			return fmt.Errorf("audit: marshaling field %q: %w", k, err)
		}
	}

	line.WriteByte('}')
	line.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line.Bytes()); err != nil {
		return fmt.Errorf("audit: writing entry: %w", err)
	}
	return nil
}

// writeField appends a "key":"value" string pair; the string values used
// for ts/action/principal never fail to marshal, so this variant ignores
// the (impossible) json.Marshal error rather than threading it through.
func writeField(buf *bytes.Buffer, key, value string) {
	keyRaw, _ := json.Marshal(key)
	valueRaw, _ := json.Marshal(value)
	buf.Write(keyRaw)
	buf.WriteByte(':')
	buf.Write(valueRaw)
}

func writeFieldValue(buf *bytes.Buffer, key string, value any) error {
	keyRaw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	valueRaw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(keyRaw)
	buf.WriteByte(':')
	buf.Write(valueRaw)
	return nil
}
