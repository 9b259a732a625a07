// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package allowlist implements the recipient-address policy check: a
// normalized, fail-closed exact/domain membership test, structured after
// the ordered allow/block check in the proxy's own command filter.
package allowlist

import (
	"regexp"
	"strings"
)

var (
	localPattern  = regexp.MustCompile(`^[a-z0-9._%+-]+$`)
	domainPattern = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// NormalizeAddress lowercases and trims candidate, then validates its
// shape: no embedded spaces, exactly one '@' with non-empty local and
// domain parts, each matching a narrow character class. This rejects
// addresses like "victim@good.com@attacker.com" that a naive
// strings.Contains(domain) check would let through.
//
// Returns the normalized address and true, or an empty string and false
// if the candidate is not shaped like a valid address.
func NormalizeAddress(candidate string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(candidate))
	if strings.ContainsAny(normalized, " \t\n") {
		return "", false
	}

	parts := strings.Split(normalized, "@")
	if len(parts) != 2 {
		return "", false
	}
	local, domain := parts[0], parts[1]
	if local == "" || domain == "" {
		return "", false
	}
	if !localPattern.MatchString(local) || !domainPattern.MatchString(domain) {
		return "", false
	}
	return normalized, true
}

// Policy holds the configuration inputs to Allowed.
type Policy struct {
	AllowAll  bool
	Addresses []string
	Domains   []string
}

// Allowed decides whether candidate may receive outbound mail, in the
// following order:
//
//  1. AllowAll short-circuits to accept.
//  2. Both lists empty fails closed (reject) — ambiguous configuration
//     never defaults to permissive.
//  3. Exact address match (case-insensitive, already normalized) accepts.
//  4. Domain match accepts.
//  5. Otherwise reject.
//
// A candidate that does not even parse as an address (per NormalizeAddress)
// is always rejected, regardless of AllowAll — AllowAll widens the
// recipient set, it does not waive the address-shape check.
func Allowed(candidate string, policy Policy) bool {
	normalized, ok := NormalizeAddress(candidate)
	if !ok {
		return false
	}

	if policy.AllowAll {
		return true
	}

	if len(policy.Addresses) == 0 && len(policy.Domains) == 0 {
		return false
	}

	for _, addr := range policy.Addresses {
		if strings.ToLower(strings.TrimSpace(addr)) == normalized {
			return true
		}
	}

	domain := normalized[strings.IndexByte(normalized, '@')+1:]
	for _, d := range policy.Domains {
		if strings.ToLower(strings.TrimSpace(d)) == domain {
			return true
		}
	}

	return false
}
