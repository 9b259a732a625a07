// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package redact classifies email content as carrying authentication
// artifacts (one-time codes, password reset links, sign-in prompts) so the
// email handler can block or flag it before it reaches the agent.
package redact

import "regexp"

// Category names attached to audit entries when a message is classified
// sensitive.
const (
	CategoryOTP       = "otp_2fa"
	CategoryReset     = "password_reset"
	CategoryMagicLink = "magic_link"
)

type family struct {
	category string
	patterns []*regexp.Regexp
}

var families = []family{
	{
		category: CategoryOTP,
		patterns: compileAll(
			`\bone[- ]time (?:passcode|password|code)\b`,
			`\bverification code\b`,
			`\b2fa\b`,
			`\btwo[- ]factor\b`,
			`\blogin code\b`,
			`\bauthentication code\b`,
			`\bsecurity code\b`,
			`\botp\b`,
		),
	},
	{
		category: CategoryReset,
		patterns: compileAll(
			`\bpassword reset\b`,
			`\breset your password\b`,
			`\bsign[- ]in attempt\b`,
			`\bapprove sign[- ]in\b`,
			`\bapprove this sign[- ]in\b`,
			`\bnew sign[- ]in\b`,
		),
	},
	{
		category: CategoryMagicLink,
		patterns: compileAll(
			`\bmagic link\b`,
			`\bverify your email\b`,
			`\bverify email address\b`,
			`\bpasskey\b`,
			`\bdevice verification\b`,
			`\bconfirm this device\b`,
		),
	},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return compiled
}

// IsSensitive reports whether text (already the concatenation of subject,
// snippet, and body) matches any pattern in the auth corpus.
func IsSensitive(text string) bool {
	sensitive, _ := Classify(text)
	return sensitive
}

// Classify reports whether text matches the auth corpus and, if so, which
// family matched first. Family order is OTP/2FA, then password-reset, then
// magic-link — the order patterns are declared above, not a ranking of
// severity.
func Classify(text string) (sensitive bool, category string) {
	for _, fam := range families {
		for _, pattern := range fam.patterns {
			if pattern.MatchString(text) {
				return true, fam.category
			}
		}
	}
	return false, ""
}
