// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer logger.Close()

	if err := logger.Write(Entry{Action: "auth_deny", Principal: "unknown", Fields: map[string]any{
		"path":   "/v1/email/unread",
		"reason": "missing_credentials",
	}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := logger.Write(Entry{Action: "email_unread", Principal: "agent-1", Fields: map[string]any{
		"days":  2,
		"count": 1,
	}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lines []map[string]any
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("unmarshaling line: %v", err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["action"] != "auth_deny" || lines[0]["principal"] != "unknown" {
		t.Errorf("first line = %v", lines[0])
	}
	if _, ok := lines[0]["ts"]; !ok {
		t.Error("expected ts field present")
	}
	if lines[1]["action"] != "email_unread" || lines[1]["count"] != float64(1) {
		t.Errorf("second line = %v", lines[1])
	}
}

func TestWriteLeadsWithTimestampField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer logger.Close()

	if err := logger.Write(Entry{Action: "email_unread", Principal: "agent-1", Fields: map[string]any{
		"count": 1,
	}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(raw), `{"ts":"`) {
		t.Errorf("line does not lead with ts field: %s", raw)
	}
}

func TestOpenCreatesFileMode0600(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer logger.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %v, want 0600", perm)
	}
}

func TestWriteConcurrentDoesNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer logger.Close()

	const writers = 20
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			done <- logger.Write(Entry{Action: "concurrent", Principal: "agent", Fields: map[string]any{"n": n}})
		}(i)
	}
	for i := 0; i < writers; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	count := 0
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("line %d did not parse as valid JSON (interleaved write?): %v", count, err)
		}
		count++
	}
	if count != writers {
		t.Errorf("got %d lines, want %d", count, writers)
	}
}
