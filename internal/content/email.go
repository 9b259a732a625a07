// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package content implements the privacy-projection rules applied to
// provider output before it reaches an agent: email thread-context
// stripping plus auth-sensitivity gating, and calendar event field
// projection.
package content

import (
	"regexp"
	"strings"

	"github.com/oxbowsec/mailproxy/internal/provider"
	"github.com/oxbowsec/mailproxy/internal/redact"
)

var quoteLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*>`),
	regexp.MustCompile(`(?i)^On .+ wrote:\s*$`),
	regexp.MustCompile(`(?i)^From:\s`),
	regexp.MustCompile(`(?i)^Sent:\s`),
	regexp.MustCompile(`(?i)^Subject:\s`),
	regexp.MustCompile(`(?i)^To:\s`),
	regexp.MustCompile(`(?i)^-+\s*Original Message\s*-+$`),
	regexp.MustCompile(`(?i)^Begin forwarded message:\s*$`),
}

// StripQuotedContent truncates text at the first line matching any
// quote-boundary pattern, returning everything before it with trailing
// whitespace trimmed. Text with no such boundary is returned unchanged.
func StripQuotedContent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for _, pattern := range quoteLinePatterns {
			if pattern.MatchString(line) {
				return strings.TrimRight(strings.Join(lines[:i], "\n"), " \t\n")
			}
		}
	}
	return text
}

// Warning describes a sensitive message that warn mode keeps and flags.
// Block mode drops such messages and emits no Warning for them.
type Warning struct {
	ID         string `json:"id"`
	ThreadID   string `json:"threadId"`
	WouldBlock bool   `json:"wouldBlock"`
	Reason     string `json:"reason"`
	Category   string `json:"category"`
}

// Item is a fully shaped email item ready for the HTTP response.
type Item struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	From         string `json:"from"`
	To           string `json:"to"`
	Subject      string `json:"subject"`
	Snippet      string `json:"snippet"`
	Body         string `json:"body"`
	InternalDate string `json:"internalDate"`
	Sensitivity  string `json:"sensitivity"`
}

// ShapeMessages applies thread-context stripping (when threadContextMode
// is "latest_only") and sensitivity gating (per authHandlingMode: "block"
// drops sensitive items, "warn" keeps them and appends a Warning) to
// a batch of provider messages. categories collects the matched redact
// family (e.g. "otp_2fa") for every sensitive message, for the caller's
// audit entry — the client-facing Warning.Category is always the fixed
// "auth_sensitive" token, regardless of which family matched.
func ShapeMessages(messages []provider.Message, threadContextMode, authHandlingMode string) (items []Item, warnings []Warning, blockedCount int, categories []string) {
	items = make([]Item, 0, len(messages))
	for _, m := range messages {
		snippet, body := m.Snippet, m.Body
		if threadContextMode == "latest_only" {
			snippet = StripQuotedContent(snippet)
			body = StripQuotedContent(body)
		}

		sensitive, family := redact.Classify(m.Subject + " " + snippet + " " + body)
		sensitivity := "normal"
		if sensitive {
			sensitivity = "auth_sensitive"
			categories = append(categories, family)
		}

		if sensitive && authHandlingMode == "block" {
			blockedCount++
			continue
		}

		item := Item{
			ID:           m.ID,
			ThreadID:     m.ThreadID,
			From:         m.From,
			To:           m.To,
			Subject:      m.Subject,
			Snippet:      snippet,
			Body:         body,
			InternalDate: m.InternalDate,
			Sensitivity:  sensitivity,
		}
		items = append(items, item)

		if sensitive && authHandlingMode == "warn" {
			warnings = append(warnings, Warning{
				ID:         m.ID,
				ThreadID:   m.ThreadID,
				WouldBlock: true,
				Reason:     "auth_artifact_detected",
				Category:   "auth_sensitive",
			})
		}
	}
	return items, warnings, blockedCount, categories
}
