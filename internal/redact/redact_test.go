// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package redact

import "testing"

func TestIsSensitive(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"normal message", "hello normal body", false},
		{"otp phrasing", "OTP 999999", true},
		{"login code", "login code 999999", true},
		{"password reset", "We received a password reset request", true},
		{"sign-in attempt", "Approve this sign-in attempt from a new device", true},
		{"magic link", "Click this magic link to continue", true},
		{"verify email", "Please verify your email address", true},
		{"unrelated use of code", "the area code for Boston is 617", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSensitive(tt.text); got != tt.want {
				t.Errorf("IsSensitive(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassifyReturnsCategory(t *testing.T) {
	sensitive, category := Classify("your one-time passcode is 123456")
	if !sensitive {
		t.Fatal("expected sensitive=true")
	}
	if category != CategoryOTP {
		t.Errorf("category = %q, want %q", category, CategoryOTP)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	if !IsSensitive("YOUR VERIFICATION CODE IS 482913") {
		t.Error("expected case-insensitive match")
	}
}
