// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"
	"time"

	"github.com/oxbowsec/mailproxy/internal/allowlist"
	"github.com/oxbowsec/mailproxy/internal/clamp"
	"github.com/oxbowsec/mailproxy/internal/content"
)

func (s *Server) handleEmailUnread(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	days := clamp.Days(r.URL.Query().Get("days"), s.cfg.Email.MaxRecentDays)
	threadContextMode := r.URL.Query().Get("contextMode")
	if threadContextMode != "full_thread" && threadContextMode != "latest_only" {
		threadContextMode = string(s.cfg.Email.ThreadContextMode)
	}

	since := time.Now().AddDate(0, 0, -days)
	providerMode := "latest"
	if threadContextMode == "full_thread" {
		providerMode = "full"
	}

	messages, err := s.provider.FetchUnread(r.Context(), since, providerMode)
	if err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "provider_fetch_unread"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}

	items, warnings, blockedCount, categories := content.ShapeMessages(messages, threadContextMode, string(s.cfg.Email.AuthHandlingMode))

	auditFields := map[string]any{
		"days":             days,
		"contextMode":      threadContextMode,
		"authHandlingMode": string(s.cfg.Email.AuthHandlingMode),
		"blockedCount":     blockedCount,
		"count":            len(items),
	}
	if len(categories) > 0 {
		auditFields["categories"] = categories
	}
	s.writeAudit("email_unread", principal, auditFields)

	response := map[string]any{"items": items}
	if len(warnings) > 0 {
		response["warnings"] = warnings
	}
	writeJSON(w, s.logger, response)
}

type outboundRequest struct {
	ThreadID string `json:"threadId"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

func (s *Server) handleEmailReply(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	var req outboundRequest
	if code := readJSONBody(w, r, s.cfg.Server.MaxRequestBodyBytes, &req); code != "" {
		writeError(w, s.logger, statusForReadError(code), code)
		return
	}
	if req.ThreadID == "" || req.To == "" || req.Subject == "" || req.Body == "" {
		writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
		return
	}

	if !s.cfg.Outbound.AllowReplyToAnyone {
		if !allowlist.Allowed(req.To, s.outboundPolicy()) {
			s.writeAudit("recipient_denied", principal, map[string]any{"to": req.To, "route": "reply"})
			writeError(w, s.logger, http.StatusForbidden, ErrRecipientNotAllowed)
			return
		}
	}

	result, err := s.sendCounter.Consume(time.Now(), s.cfg.Outbound.MaxSendsPerHour, s.cfg.Outbound.MaxSendsPerDay)
	if err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "quota_consume_failed"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}
	if !result.OK {
		writeError(w, s.logger, http.StatusTooManyRequests, ErrorCode(result.Reason))
		return
	}

	if err := s.provider.Reply(r.Context(), req.ThreadID, req.To, req.Subject, req.Body); err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "provider_reply"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}

	s.writeAudit("email_reply", principal, map[string]any{"threadId": req.ThreadID, "to": req.To})
	writeJSON(w, s.logger, map[string]any{"ok": true})
}

func (s *Server) handleEmailSend(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	if s.cfg.Outbound.ReplyOnlyDefault {
		s.writeAudit("send_denied", principal, map[string]any{"reason": "reply_only_mode"})
		writeError(w, s.logger, http.StatusForbidden, ErrReplyOnlyMode)
		return
	}

	var req outboundRequest
	if code := readJSONBody(w, r, s.cfg.Server.MaxRequestBodyBytes, &req); code != "" {
		writeError(w, s.logger, statusForReadError(code), code)
		return
	}
	if req.To == "" || req.Subject == "" || req.Body == "" {
		writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
		return
	}

	if !allowlist.Allowed(req.To, s.outboundPolicy()) {
		s.writeAudit("recipient_denied", principal, map[string]any{"to": req.To, "route": "send"})
		writeError(w, s.logger, http.StatusForbidden, ErrRecipientNotAllowed)
		return
	}

	result, err := s.sendCounter.Consume(time.Now(), s.cfg.Outbound.MaxSendsPerHour, s.cfg.Outbound.MaxSendsPerDay)
	if err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "quota_consume_failed"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}
	if !result.OK {
		writeError(w, s.logger, http.StatusTooManyRequests, ErrorCode(result.Reason))
		return
	}

	if err := s.provider.Send(r.Context(), req.To, req.Subject, req.Body); err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "provider_send"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}

	s.writeAudit("email_send", principal, map[string]any{"to": req.To})
	writeJSON(w, s.logger, map[string]any{"ok": true})
}
