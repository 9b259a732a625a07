// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/oxbowsec/mailproxy/internal/audit"
	"github.com/oxbowsec/mailproxy/internal/authn"
)

type principalKey struct{}

func principalFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey{}).(string); ok {
		return p
	}
	return ""
}

// authenticate implements the two credential modes in order: API key
// header, then bearer token. Returns the principal and true on
// success; on failure it returns an empty principal, false, and the
// specific reason the caller was denied, for the auth_deny audit entry.
func (s *Server) authenticate(r *http.Request) (principal string, ok bool, reason string) {
	if candidate := r.Header.Get("x-api-key"); candidate != "" {
		if authn.EqualAPIKey(s.apiKey, candidate) {
			return "api-key", true, ""
		}
		return "", false, "invalid_api_key"
	}
	if candidate := r.Header.Get("x-agent-key"); candidate != "" {
		if authn.EqualAPIKey(s.apiKey, candidate) {
			return "api-key", true, ""
		}
		return "", false, "invalid_api_key"
	}

	authHeader := r.Header.Get("authorization")
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false, "no_credentials"
	}
	tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

	subject, err := authn.Verify(tokenString, s.signingKey, s.previous, s.replayStore, time.Now())
	if err != nil {
		return "", false, err.Error()
	}
	return subject, true, ""
}

// admit wraps next with the admission pipeline: authenticate, then
// per-principal rate limit, then bind the principal into the request
// context for the handler and the audit logger.
func (s *Server) admit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok, reason := s.authenticate(r)
		if !ok {
			s.writeAudit("auth_deny", "unknown", map[string]any{"path": r.URL.Path, "reason": reason})
			writeError(w, s.logger, http.StatusUnauthorized, ErrUnauthorized)
			return
		}

		if !s.limiter.Allow(principal, time.Now()) {
			s.writeAudit("rate_limited", principal, map[string]any{"path": r.URL.Path})
			writeError(w, s.logger, http.StatusTooManyRequests, ErrRateLimited)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next(w, r.WithContext(ctx))
	}
}

// recoverWrap catches a panic from a handler and translates it into a
// stable HTTP 502, matching the "programming
// faults never leak as a 5xx with upstream detail" discipline.
func (s *Server) recoverWrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.writeAudit("request_error", principalFromContext(r.Context()), map[string]any{
					"path": r.URL.Path,
					"code": "panic",
				})
				writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
			}
		}()
		next(w, r)
	}
}

func (s *Server) writeAudit(action, principal string, fields map[string]any) {
	if err := s.audit.Write(audit.Entry{Action: action, Principal: principal, Fields: fields}); err != nil {
		s.logger.Warn("audit write failed", "error", err)
	}
}
