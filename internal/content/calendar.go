// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package content

import "github.com/oxbowsec/mailproxy/internal/provider"

// AttendeeView is the projected shape of a calendar attendee.
type AttendeeView struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	Self           bool   `json:"self"`
	ResponseStatus string `json:"responseStatus"`
}

// EventView is the projected, policy-gated shape of a calendar event.
// Location, HangoutLink, and Attendees are omitted entirely (not just
// zeroed) when their gate is off, via `omitempty` plus nil-vs-empty
// discipline in ShapeEvents.
type EventView struct {
	ID          string         `json:"id"`
	Summary     string         `json:"summary"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	Location    string         `json:"location,omitempty"`
	HangoutLink string         `json:"hangoutLink,omitempty"`
	Attendees   []AttendeeView `json:"attendees,omitempty"`
}

// FieldFlags controls which optional event fields are projected.
type FieldFlags struct {
	AllowLocation       bool
	AllowMeetingURLs    bool
	AllowAttendeeEmails bool
}

// ShapeEvents projects provider events to their policy-gated view.
func ShapeEvents(events []provider.Event, flags FieldFlags) []EventView {
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		view := EventView{
			ID:      e.ID,
			Summary: e.Summary,
			Start:   e.Start,
			End:     e.End,
		}
		if flags.AllowLocation {
			view.Location = e.Location
		}
		if flags.AllowMeetingURLs {
			view.HangoutLink = e.HangoutLink
		}
		if flags.AllowAttendeeEmails {
			for _, a := range e.Attendees {
				view.Attendees = append(view.Attendees, AttendeeView{
					Email:          a.Email,
					DisplayName:    a.DisplayName,
					Self:           a.Self,
					ResponseStatus: a.ResponseStatus,
				})
			}
		}
		views = append(views, view)
	}
	return views
}
