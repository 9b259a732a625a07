// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package allowlist

import "testing"

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"simple lowercase", "Alice@Example.com", "alice@example.com", true},
		{"trims whitespace", "  bob@example.com  ", "bob@example.com", true},
		{"rejects embedded space", "a b@example.com", "", false},
		{"rejects double at", "victim@good.com@attacker.com", "", false},
		{"rejects missing domain", "alice@", "", false},
		{"rejects missing local", "@example.com", "", false},
		{"rejects bad tld", "alice@example.c", "", false},
		{"rejects invalid local chars", "alice!!@example.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeAddress(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("NormalizeAddress(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAllowedFailsClosedWhenBothListsEmpty(t *testing.T) {
	if Allowed("x@y.com", Policy{}) {
		t.Error("expected fail-closed deny when both lists empty")
	}
}

func TestAllowedAllowAll(t *testing.T) {
	if !Allowed("anyone@anywhere.com", Policy{AllowAll: true}) {
		t.Error("expected allow when AllowAll is true")
	}
}

func TestAllowedAllowAllStillRejectsMalformed(t *testing.T) {
	if Allowed("a@b@c", Policy{AllowAll: true}) {
		t.Error("expected malformed address rejected even under AllowAll")
	}
}

func TestAllowedExactMatch(t *testing.T) {
	p := Policy{Addresses: []string{"ok@example.com"}}
	if !Allowed("OK@Example.com", p) {
		t.Error("expected case-insensitive exact match to allow")
	}
	if Allowed("notok@example.com", p) {
		t.Error("expected non-matching address to be denied")
	}
}

func TestAllowedDomainMatch(t *testing.T) {
	p := Policy{Domains: []string{"example.com"}}
	if !Allowed("anyone@example.com", p) {
		t.Error("expected domain match to allow")
	}
	if Allowed("anyone@other.com", p) {
		t.Error("expected non-matching domain to be denied")
	}
}

func TestAllowedMalformedAlwaysDenied(t *testing.T) {
	p := Policy{Domains: []string{"good.com"}}
	if Allowed("victim@good.com@attacker.com", p) {
		t.Error("expected a@b@c style address to be denied")
	}
}
