// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"net/http"
	"time"

	"github.com/oxbowsec/mailproxy/internal/clamp"
	"github.com/oxbowsec/mailproxy/internal/content"
)

func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	query := r.URL.Query()

	rng := clamp.CalendarRange(time.Now(), query.Get("start"), query.Get("end"), s.calendarRangeConfig())
	calendars := clamp.CalendarIDs(query.Get("calendars"), s.cfg.CalendarRead.CalendarIDs)

	events, err := s.provider.FetchEvents(r.Context(), calendars, rng.Start, rng.End)
	if err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "provider_fetch_events"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}

	flags := content.FieldFlags{
		AllowLocation:       s.cfg.CalendarRead.AllowLocation,
		AllowMeetingURLs:    s.cfg.CalendarRead.AllowMeetingURLs,
		AllowAttendeeEmails: s.cfg.CalendarRead.AllowAttendeeEmails,
	}
	views := content.ShapeEvents(events, flags)

	s.writeAudit("calendar_events", principal, map[string]any{
		"start":               rng.Start.Format(time.RFC3339),
		"end":                 rng.End.Format(time.RFC3339),
		"calendars":           calendars,
		"count":               len(views),
		"allowLocation":       flags.AllowLocation,
		"allowMeetingUrls":    flags.AllowMeetingURLs,
		"allowAttendeeEmails": flags.AllowAttendeeEmails,
	})

	writeJSON(w, s.logger, map[string]any{"items": views})
}

type calendarCreateRequest struct {
	CalendarID string   `json:"calendarId"`
	Summary    string   `json:"summary"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Attendees  []string `json:"attendees"`
}

func (s *Server) handleCalendarCreate(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	if !s.cfg.CalendarWrite.Enabled {
		writeError(w, s.logger, http.StatusForbidden, ErrCalendarWriteDisabled)
		return
	}

	var req calendarCreateRequest
	if code := readJSONBody(w, r, s.cfg.Server.MaxRequestBodyBytes, &req); code != "" {
		writeError(w, s.logger, statusForReadError(code), code)
		return
	}
	if req.CalendarID == "" || req.Summary == "" || req.Start == "" || req.End == "" {
		writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
		return
	}
	if !clamp.WriteCalendarAllowed(req.CalendarID, s.cfg.CalendarWrite.AllowedCalendars, s.cfg.CalendarRead.CalendarIDs) {
		writeError(w, s.logger, http.StatusForbidden, ErrCalendarNotAllowed)
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
		return
	}

	attendees := req.Attendees
	if !s.cfg.CalendarWrite.AllowAttendees {
		attendees = nil
	}

	result, err := s.calCounter.Consume(time.Now(), s.cfg.CalendarWrite.MaxEventsPerHour, s.cfg.CalendarWrite.MaxEventsPerDay)
	if err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "quota_consume_failed"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}
	if !result.OK {
		writeError(w, s.logger, http.StatusTooManyRequests, ErrorCode(result.Reason))
		return
	}

	id, err := s.provider.CreateEvent(r.Context(), req.CalendarID, req.Summary, start, end, attendees, string(s.cfg.CalendarWrite.SendUpdates))
	if err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "provider_create_event"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}

	s.writeAudit("calendar_create", principal, map[string]any{"calendarId": req.CalendarID, "id": id})
	writeJSON(w, s.logger, map[string]any{"id": id})
}

type calendarUpdateRequest struct {
	CalendarID   string   `json:"calendarId"`
	Summary      string   `json:"summary"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	AddAttendees []string `json:"addAttendees"`
}

func (s *Server) handleCalendarUpdate(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	if !s.cfg.CalendarWrite.Enabled {
		writeError(w, s.logger, http.StatusForbidden, ErrCalendarWriteDisabled)
		return
	}

	eventID := r.PathValue("id")
	if eventID == "" {
		writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
		return
	}

	var req calendarUpdateRequest
	if code := readJSONBody(w, r, s.cfg.Server.MaxRequestBodyBytes, &req); code != "" {
		writeError(w, s.logger, statusForReadError(code), code)
		return
	}
	if req.CalendarID == "" {
		writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
		return
	}
	if !clamp.WriteCalendarAllowed(req.CalendarID, s.cfg.CalendarWrite.AllowedCalendars, s.cfg.CalendarRead.CalendarIDs) {
		writeError(w, s.logger, http.StatusForbidden, ErrCalendarNotAllowed)
		return
	}

	var start, end *time.Time
	if req.Start != "" {
		parsed, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
			return
		}
		start = &parsed
	}
	if req.End != "" {
		parsed, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			writeError(w, s.logger, http.StatusBadRequest, ErrMissingFields)
			return
		}
		end = &parsed
	}

	addAttendees := req.AddAttendees
	if !s.cfg.CalendarWrite.AllowAttendees {
		addAttendees = nil
	}

	result, err := s.calCounter.Consume(time.Now(), s.cfg.CalendarWrite.MaxEventsPerHour, s.cfg.CalendarWrite.MaxEventsPerDay)
	if err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "quota_consume_failed"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}
	if !result.OK {
		writeError(w, s.logger, http.StatusTooManyRequests, ErrorCode(result.Reason))
		return
	}

	if err := s.provider.UpdateEvent(r.Context(), req.CalendarID, eventID, req.Summary, start, end, addAttendees, string(s.cfg.CalendarWrite.SendUpdates)); err != nil {
		s.writeAudit("request_error", principal, map[string]any{"path": r.URL.Path, "code": "provider_update_event"})
		writeError(w, s.logger, http.StatusBadGateway, ErrUpstreamFailure)
		return
	}

	s.writeAudit("calendar_update", principal, map[string]any{"calendarId": req.CalendarID, "eventId": eventID})
	writeJSON(w, s.logger, map[string]any{"ok": true})
}
