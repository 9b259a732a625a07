// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"testing"

	"github.com/oxbowsec/mailproxy/internal/provider"
)

func TestShapeEventsGatesOptionalFields(t *testing.T) {
	events := []provider.Event{
		{
			ID:          "e1",
			Summary:     "Standup",
			Start:       "2026-08-03T09:00:00Z",
			End:         "2026-08-03T09:15:00Z",
			Location:    "Room 4",
			HangoutLink: "https://meet.example.com/x",
			Attendees:   []provider.Attendee{{Email: "a@b.com", Self: true}},
		},
	}

	closed := ShapeEvents(events, FieldFlags{})
	if closed[0].Location != "" || closed[0].HangoutLink != "" || closed[0].Attendees != nil {
		t.Errorf("expected all optional fields gated off, got %+v", closed[0])
	}

	open := ShapeEvents(events, FieldFlags{AllowLocation: true, AllowMeetingURLs: true, AllowAttendeeEmails: true})
	if open[0].Location != "Room 4" || open[0].HangoutLink != "https://meet.example.com/x" {
		t.Errorf("expected optional fields present, got %+v", open[0])
	}
	if len(open[0].Attendees) != 1 || open[0].Attendees[0].Email != "a@b.com" {
		t.Errorf("expected attendees projected, got %+v", open[0].Attendees)
	}
}
