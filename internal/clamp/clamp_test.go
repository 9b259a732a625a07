// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clamp

import (
	"testing"
	"time"
)

func TestDays(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		max  int
		want int
	}{
		{"within range", "3", 7, 3},
		{"zero clamps to one", "0", 7, 1},
		{"negative clamps to one", "-5", 7, 1},
		{"above max clamps to max", "100", 7, 7},
		{"non-numeric uses max", "banana", 7, 7},
		{"empty uses max", "", 7, 7},
		{"exact max", "2", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Days(tt.raw, tt.max); got != tt.want {
				t.Errorf("Days(%q, %d) = %d, want %d", tt.raw, tt.max, got, tt.want)
			}
		})
	}
}

func TestCalendarRangeExplicitBounds(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC) // a Monday
	cfg := RangeConfig{MaxPastDays: 30, MaxFutureDays: 90, DefaultThisWeek: true}

	r := CalendarRange(now, "2026-08-01T00:00:00Z", "2026-08-02T00:00:00Z", cfg)
	if !r.Start.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", r.Start)
	}
	if !r.End.Equal(time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("End = %v", r.End)
	}
}

func TestCalendarRangeMissingFallsBackToThisWeek(t *testing.T) {
	now := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC) // Wednesday
	cfg := RangeConfig{MaxPastDays: 30, MaxFutureDays: 90, DefaultThisWeek: true}

	r := CalendarRange(now, "", "", cfg)
	wantStart := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)  // Monday
	wantEnd := time.Date(2026, 8, 9, 23, 59, 59, 0, time.UTC) // Sunday
	if !r.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", r.Start, wantStart)
	}
	if !r.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", r.End, wantEnd)
	}
}

func TestCalendarRangeMissingFallsBackToMinMaxWhenNotThisWeek(t *testing.T) {
	now := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	cfg := RangeConfig{MaxPastDays: 2, MaxFutureDays: 2, DefaultThisWeek: false}

	r := CalendarRange(now, "", "", cfg)
	if !r.Start.Equal(r.Min) || !r.End.Equal(r.Max) {
		t.Errorf("expected start/end to equal min/max, got start=%v end=%v min=%v max=%v", r.Start, r.End, r.Min, r.Max)
	}
}

func TestCalendarRangeClampsBelowMin(t *testing.T) {
	now := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	cfg := RangeConfig{MaxPastDays: 2, MaxFutureDays: 2}

	r := CalendarRange(now, "2000-01-01T00:00:00Z", "2026-08-05T00:00:00Z", cfg)
	if !r.Start.Equal(r.Min) {
		t.Errorf("Start = %v, want clamped to Min %v", r.Start, r.Min)
	}
}

func TestCalendarRangeEndBeforeStartAfterClamp(t *testing.T) {
	now := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	cfg := RangeConfig{MaxPastDays: 1, MaxFutureDays: 1}

	// start is already inside [min, max]; end is far in the past, which
	// only the max clamp could change, so end < start and end = start.
	r := CalendarRange(now, "2026-08-05T00:00:00Z", "2000-01-01T00:00:00Z", cfg)
	if r.End.Before(r.Start) {
		t.Errorf("End %v is before Start %v", r.End, r.Start)
	}
}

func TestCalendarIDs(t *testing.T) {
	configured := []string{"primary"}

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty uses configured", "", configured},
		{"whitespace only uses configured", "   ", configured},
		{"single id", "cal1", []string{"cal1"}},
		{"dedups and trims", "cal1, cal2 ,cal1,", []string{"cal1", "cal2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalendarIDs(tt.raw, configured)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestWriteCalendarAllowed(t *testing.T) {
	if !WriteCalendarAllowed("a", []string{"a", "b"}, nil) {
		t.Error("expected allowed via write allowlist")
	}
	if WriteCalendarAllowed("c", []string{"a", "b"}, nil) {
		t.Error("expected denied, not in write allowlist")
	}
	if !WriteCalendarAllowed("primary", nil, []string{"primary"}) {
		t.Error("expected allowed via read list when write allowlist empty")
	}
	if WriteCalendarAllowed("other", nil, []string{"primary"}) {
		t.Error("expected denied, not in read list")
	}
}
