// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authn implements the two credential modes the admission
// pipeline accepts: a static API key compared in constant time, and an
// HMAC-SHA256 signed bearer token with current+previous key rotation,
// claim validation, and one-time-use enforcement via internal/replay.
package authn

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oxbowsec/mailproxy/internal/replay"
	"github.com/oxbowsec/mailproxy/internal/secretbuf"
)

// Audience is the fixed audience constant every token must carry.
// Verify never consults the value supplied by a caller; it is a
// compile-time constant precisely so a forged or misconfigured token
// can never widen its own acceptance criteria.
const Audience = "mailproxy"

var jtiPattern = regexp.MustCompile(`^[a-f0-9-]{16,64}$`)

// Errors returned by Verify. The admission pipeline maps all of them to
// the same HTTP 401 response — they exist as distinct values only so
// tests and audit fields can record a specific deny reason.
var (
	ErrMalformed        = errors.New("authn: token is not well-formed")
	ErrSignatureInvalid = errors.New("authn: signature does not verify under any configured key")
	ErrExpired          = errors.New("authn: token has expired")
	ErrNotYetValid      = errors.New("authn: issued-at is too far in the future")
	ErrEmptySubject     = errors.New("authn: subject claim is empty")
	ErrAudienceMismatch = errors.New("authn: audience does not match")
	ErrInvalidJTI       = errors.New("authn: jti does not match the safe-name pattern")
	ErrReplayed         = replay.ErrAlreadyUsed
)

const issuedAtSkew = 10 * time.Second

// header is the fixed JWT-style header every token carries. It is
// never consulted to select a verification algorithm — the only
// verifier mailproxy implements is HMAC-SHA256.
type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

var fixedHeader = header{Alg: "HS256", Typ: "JWT"}

// Claims is the decoded payload of a bearer token.
type Claims struct {
	Subject  string `json:"subject"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
	JTI      string `json:"jti"`
	Audience string `json:"audience"`
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("authn: encoding token segment: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Mint issues a fresh bearer token for subject, signed with signingKey,
// valid for ttl starting at now.
func Mint(signingKey *secretbuf.Buffer, subject string, ttl time.Duration, now time.Time) (string, error) {
	headerSeg, err := encodeSegment(fixedHeader)
	if err != nil {
		return "", err
	}

	claims := Claims{
		Subject:  subject,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(ttl).Unix(),
		JTI:      uuid.New().String(),
		Audience: Audience,
	}
	payloadSeg, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}

	signingInput := headerSeg + "." + payloadSeg
	signature := sign(signingKey, signingInput)

	return signingInput + "." + signature, nil
}

func sign(key *secretbuf.Buffer, signingInput string) string {
	mac := hmac.New(sha256.New, key.Bytes())
	mac.Write([]byte(signingInput))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks tokenString against the current and previous signing
// keys (skipping either if nil), validates claims, and installs a
// replay marker in store. Returns the verified subject on success.
func Verify(tokenString string, current, previous *secretbuf.Buffer, store *replay.Store, now time.Time) (subject string, err error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return "", ErrMalformed
	}
	signingInput := parts[0] + "." + parts[1]
	suppliedSignature := parts[2]

	var matchedKey *secretbuf.Buffer
	for _, key := range []*secretbuf.Buffer{current, previous} {
		if key == nil {
			continue
		}
		expected := sign(key, signingInput)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(suppliedSignature)) == 1 {
			matchedKey = key
			break
		}
	}
	if matchedKey == nil {
		return "", ErrSignatureInvalid
	}

	payloadRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformed
	}
	var claims Claims
	if err := json.Unmarshal(payloadRaw, &claims); err != nil {
		return "", ErrMalformed
	}

	if claims.Expiry == 0 || now.Unix() >= claims.Expiry {
		return "", ErrExpired
	}
	if claims.IssuedAt == 0 || time.Unix(claims.IssuedAt, 0).After(now.Add(issuedAtSkew)) {
		return "", ErrNotYetValid
	}
	if claims.Subject == "" {
		return "", ErrEmptySubject
	}
	if claims.Audience != Audience {
		return "", ErrAudienceMismatch
	}
	if !jtiPattern.MatchString(claims.JTI) {
		return "", ErrInvalidJTI
	}

	if err := store.Install(claims.JTI, time.Unix(claims.Expiry, 0)); err != nil {
		return "", err
	}

	return claims.Subject, nil
}

// EqualAPIKey reports whether candidate matches the configured key by
// delegating to secretbuf.Buffer.Equal: equal-length contents are
// compared with subtle.ConstantTimeCompare, and a candidate of a
// different length returns false (never an error) after a compare of the
// stored key against itself. Token signatures in Verify are compared
// with subtle.ConstantTimeCompare directly.
func EqualAPIKey(key *secretbuf.Buffer, candidate string) bool {
	return key.Equal([]byte(candidate))
}
