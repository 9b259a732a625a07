// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"
	"time"

	"github.com/oxbowsec/mailproxy/internal/authn"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]any{
		"ok":            true,
		"providerReady": s.provider.Ready(),
	})
}

type mintTokenRequest struct {
	Subject string `json:"sub"`
}

type mintTokenResponse struct {
	Token      string `json:"token"`
	TTLSeconds int    `json:"ttlSeconds"`
}

func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	candidate := r.Header.Get("x-api-key")
	if candidate == "" {
		candidate = r.Header.Get("x-agent-key")
	}
	if candidate == "" {
		s.writeAudit("auth_deny", "unknown", map[string]any{"path": r.URL.Path, "reason": "no_credentials"})
		writeError(w, s.logger, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	if !authn.EqualAPIKey(s.apiKey, candidate) {
		s.writeAudit("auth_deny", "unknown", map[string]any{"path": r.URL.Path, "reason": "invalid_api_key"})
		writeError(w, s.logger, http.StatusUnauthorized, ErrUnauthorized)
		return
	}

	var req mintTokenRequest
	if code := readJSONBody(w, r, s.cfg.Server.MaxRequestBodyBytes, &req); code != "" {
		writeError(w, s.logger, statusForReadError(code), code)
		return
	}
	if req.Subject == "" {
		writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
		return
	}

	ttl := time.Duration(s.cfg.Token.TTLSeconds) * time.Second
	token, err := authn.Mint(s.signingKey, req.Subject, ttl, time.Now())
	if err != nil {
		s.writeAudit("request_error", req.Subject, map[string]any{"path": r.URL.Path, "code": "mint_failed"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}

	s.writeAudit("token_mint", req.Subject, nil)
	writeJSON(w, s.logger, mintTokenResponse{Token: token, TTLSeconds: s.cfg.Token.TTLSeconds})
}

func statusForReadError(code ErrorCode) int {
	if code == ErrPayloadTooLarge {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
