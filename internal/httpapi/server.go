// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi composes the admission middleware and route handlers
// that mediate an agent's access to Gmail and Calendar. Routing follows
// the credential proxy's own style: a plain stdlib http.ServeMux using
// Go 1.22's METHOD-and-path patterns, no external router framework.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/oxbowsec/mailproxy/internal/allowlist"
	"github.com/oxbowsec/mailproxy/internal/audit"
	"github.com/oxbowsec/mailproxy/internal/clamp"
	"github.com/oxbowsec/mailproxy/internal/config"
	"github.com/oxbowsec/mailproxy/internal/provider"
	"github.com/oxbowsec/mailproxy/internal/quota"
	"github.com/oxbowsec/mailproxy/internal/ratelimit"
	"github.com/oxbowsec/mailproxy/internal/replay"
	"github.com/oxbowsec/mailproxy/internal/secretbuf"
)

// Server is the mailproxy HTTP surface.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	audit    *audit.Logger
	provider *provider.Adapter

	apiKey     *secretbuf.Buffer
	signingKey *secretbuf.Buffer
	previous   *secretbuf.Buffer

	replayStore *replay.Store
	limiter     *ratelimit.Limiter
	sendCounter *quota.Counter
	calCounter  *quota.Counter

	httpServer *http.Server
	listener   net.Listener
}

// Dependencies bundles the constructed components a Server needs. All
// fields except PreviousKey are required.
type Dependencies struct {
	Config        *config.Config
	Logger        *slog.Logger
	Audit         *audit.Logger
	Provider      *provider.Adapter
	APIKey        *secretbuf.Buffer
	SigningKey    *secretbuf.Buffer
	PreviousKey   *secretbuf.Buffer // may be nil when no rotation is in progress
	ReplayStore   *replay.Store
	Limiter       *ratelimit.Limiter
	SendCounter   *quota.Counter
	CalendarQuota *quota.Counter
}

// New wires the admission middleware and every route handler.
func New(deps Dependencies) *Server {
	s := &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		audit:       deps.Audit,
		provider:    deps.Provider,
		apiKey:      deps.APIKey,
		signingKey:  deps.SigningKey,
		previous:    deps.PreviousKey,
		replayStore: deps.ReplayStore,
		limiter:     deps.Limiter,
		sendCounter: deps.SendCounter,
		calCounter:  deps.CalendarQuota,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /v1/auth/token", s.recoverWrap(s.handleMintToken))
	mux.HandleFunc("GET /v1/email/unread", s.recoverWrap(s.admit(s.handleEmailUnread)))
	mux.HandleFunc("GET /v1/calendar/events", s.recoverWrap(s.admit(s.handleCalendarEvents)))
	mux.HandleFunc("POST /v1/calendar/events", s.recoverWrap(s.admit(s.handleCalendarCreate)))
	mux.HandleFunc("PATCH /v1/calendar/events/{id}", s.recoverWrap(s.admit(s.handleCalendarUpdate)))
	mux.HandleFunc("POST /v1/email/reply", s.recoverWrap(s.admit(s.handleEmailReply)))
	mux.HandleFunc("POST /v1/email/send", s.recoverWrap(s.admit(s.handleEmailSend)))
	mux.HandleFunc("/", s.handleNotFound)

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, s.logger, http.StatusNotFound, ErrDenyByDefault)
}

// Start binds the configured address and begins serving in the
// background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.BindAddress, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listening on %s: %w", addr, err)
	}
	s.listener = listener

	s.logger.Info("mailproxy listening", "address", addr)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down mailproxy")
	return s.httpServer.Shutdown(ctx)
}

// calendarRangeConfig converts the calendar-read policy into a clamp.RangeConfig.
func (s *Server) calendarRangeConfig() clamp.RangeConfig {
	return clamp.RangeConfig{
		MaxPastDays:     s.cfg.CalendarRead.MaxPastDays,
		MaxFutureDays:   s.cfg.CalendarRead.MaxFutureDays,
		DefaultThisWeek: s.cfg.CalendarRead.DefaultThisWeek,
	}
}

func (s *Server) outboundPolicy() allowlist.Policy {
	return allowlist.Policy{
		AllowAll:  s.cfg.Outbound.AllowAllRecipients,
		Addresses: s.cfg.Outbound.RecipientAllowlist,
		Domains:   s.cfg.Outbound.DomainAllowlist,
	}
}
