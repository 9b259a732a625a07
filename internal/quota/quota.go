// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package quota implements the rolling hour+day mutation counters used
// to cap outbound sends and calendar mutations. Each counter kind is a
// single JSON record on disk, mutated under a cross-process exclusive
// lock from internal/filelock so concurrent mailproxy processes sharing
// a data directory never under-count a consume.
package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oxbowsec/mailproxy/internal/filelock"
)

// Result describes the outcome of a Consume call.
type Result struct {
	OK     bool
	Reason string // "hour_limit_exceeded" or "day_limit_exceeded", empty when OK
}

// record is the on-disk counter shape.
type record struct {
	HourKey   string `json:"hourKey"`
	DayKey    string `json:"dayKey"`
	HourCount int    `json:"hourCount"`
	DayCount  int    `json:"dayCount"`
}

// Counter wraps a single on-disk counter file.
type Counter struct {
	path string
}

// Open returns a Counter backed by the file at path. The file is
// created lazily on first Consume; Open itself performs no I/O beyond
// creating the parent directory (mode 0700) if it is missing.
func Open(path string) (*Counter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("quota: creating counter directory: %w", err)
	}
	return &Counter{path: path}, nil
}

func hourKey(t time.Time) string {
	return t.UTC().Format("2006-01-02-15")
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Consume performs the atomic load/roll/check/increment/persist cycle
// described for send and calendar-mutation counters: acquire the
// cross-process lock, load the counter (a fresh zero record if the file
// is missing, an error if it exists but does not parse), roll the
// hour/day key over if stale, reject if either
// cap is already met, otherwise increment both counts and persist
// before releasing the lock.
func (c *Counter) Consume(now time.Time, hourLimit, dayLimit int) (Result, error) {
	lock, err := filelock.Acquire(c.path)
	if err != nil {
		return Result{}, fmt.Errorf("quota: acquiring lock: %w", err)
	}
	defer lock.Release()

	rec, err := c.load()
	if err != nil {
		return Result{}, err
	}

	currentHour, currentDay := hourKey(now), dayKey(now)
	if rec.HourKey != currentHour {
		rec.HourKey = currentHour
		rec.HourCount = 0
	}
	if rec.DayKey != currentDay {
		rec.DayKey = currentDay
		rec.DayCount = 0
	}

	if rec.HourCount >= hourLimit {
		return Result{OK: false, Reason: "hour_limit_exceeded"}, nil
	}
	if rec.DayCount >= dayLimit {
		return Result{OK: false, Reason: "day_limit_exceeded"}, nil
	}

	rec.HourCount++
	rec.DayCount++

	if err := c.persist(rec); err != nil {
		return Result{}, err
	}
	return Result{OK: true}, nil
}

// Peek returns the current counter state without mutating it or
// rolling over stale keys — used for diagnostics.
func (c *Counter) Peek() (hourCount, dayCount int, err error) {
	rec, err := c.load()
	if err != nil {
		return 0, 0, err
	}
	return rec.HourCount, rec.DayCount, nil
}

// load reads the counter file. A missing file is not an error — it
// means no mutation has ever been consumed, and a fresh zero-valued
// record is returned so Consume lazily creates it on persist. A file
// that exists but fails to parse as JSON is treated as corrupt or
// tampered state and returns an error rather than silently resetting
// the counts to zero, which would let a caller bypass its quota.
func (c *Counter) load() (record, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return record{}, nil
		}
		return record{}, fmt.Errorf("quota: reading counter: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, fmt.Errorf("quota: counter file %s is not valid JSON: %w", c.path, err)
	}
	return rec, nil
}

func (c *Counter) persist(rec record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("quota: marshaling counter: %w", err)
	}
	if err := os.WriteFile(c.path, raw, 0600); err != nil {
		return fmt.Errorf("quota: writing counter: %w", err)
	}
	return nil
}
