// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"strings"
	"testing"

	"github.com/oxbowsec/mailproxy/internal/provider"
)

func TestStripQuotedContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no quote marker", "just a plain reply", "just a plain reply"},
		{"angle bracket quote", "my reply\n> quoted line\n> more quote", "my reply"},
		{"on wrote header", "my reply\nOn Mon, Aug 3, 2026, Alice wrote:\nold text", "my reply"},
		{"from header block", "my reply\nFrom: alice@example.com\nSubject: hi", "my reply"},
		{"outlook separator", "my reply\n----- Original Message -----\nold", "my reply"},
		{"forwarded message", "my reply\nBegin forwarded message:\nold", "my reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripQuotedContent(tt.in); got != tt.want {
				t.Errorf("StripQuotedContent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShapeMessagesBlockModeDropsSensitive(t *testing.T) {
	messages := []provider.Message{
		{ID: "1", Subject: "lunch tomorrow?", Snippet: "want to grab lunch"},
		{ID: "2", Subject: "Your verification code", Snippet: "Your OTP code is 123456"},
	}

	items, warnings, blocked, categories := ShapeMessages(messages, "latest_only", "block")
	if len(items) != 1 || items[0].ID != "1" {
		t.Errorf("items = %+v, want only id 1", items)
	}
	if blocked != 1 {
		t.Errorf("blocked = %d, want 1", blocked)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %+v, want none in block mode", warnings)
	}
	if len(categories) != 1 {
		t.Errorf("categories = %+v, want one matched family even though the item was dropped", categories)
	}
}

func TestShapeMessagesWarnModeKeepsAndFlags(t *testing.T) {
	messages := []provider.Message{
		{ID: "2", ThreadID: "t2", Subject: "Your verification code", Snippet: "Your OTP code is 123456"},
	}

	items, warnings, blocked, categories := ShapeMessages(messages, "latest_only", "warn")
	if len(items) != 1 {
		t.Fatalf("items = %+v, want 1 item kept in warn mode", items)
	}
	if items[0].Sensitivity != "auth_sensitive" {
		t.Errorf("Sensitivity = %q, want auth_sensitive", items[0].Sensitivity)
	}
	if blocked != 0 {
		t.Errorf("blocked = %d, want 0 in warn mode", blocked)
	}
	if len(warnings) != 1 || warnings[0].ID != "2" || !warnings[0].WouldBlock {
		t.Errorf("warnings = %+v", warnings)
	}
	if warnings[0].Category != "auth_sensitive" {
		t.Errorf("warning Category = %q, want fixed auth_sensitive token", warnings[0].Category)
	}
	if len(categories) != 1 || categories[0] == "auth_sensitive" {
		t.Errorf("categories = %+v, want the matched redact family, not the fixed warning token", categories)
	}
}

func TestShapeMessagesStripsBeforeClassifying(t *testing.T) {
	messages := []provider.Message{
		{ID: "3", Subject: "re: hi", Body: "sounds good\n> Original message had OTP code 999999"},
	}

	items, _, blocked, _ := ShapeMessages(messages, "latest_only", "block")
	if blocked != 0 {
		t.Errorf("blocked = %d, want 0 once quoted OTP text is stripped", blocked)
	}
	if len(items) != 1 || strings.Contains(items[0].Body, "OTP") {
		t.Errorf("items = %+v, expected quoted OTP text stripped from body", items)
	}
}
