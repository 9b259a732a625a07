// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package replay implements the one-time-use marker set keyed by bearer
// token jti. A marker is a small file in a dedicated directory, created
// with O_CREATE|O_EXCL so that installing it is an atomic single-winner
// operation across every process sharing the directory, surviving
// restarts for as long as the token's own TTL would have kept it valid
// anyway.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// safeName matches the jti shape the authenticator already validated
// before ever calling Install — this is a second, defensive check so a
// marker filename can never escape the directory or name a special
// file, even if a future caller forgets the upstream validation.
var safeName = regexp.MustCompile(`^[a-f0-9-]{16,64}$`)

// ErrInvalidID is returned when a jti does not pass the safe-name check.
var ErrInvalidID = errors.New("replay: jti is not a safe marker name")

// ErrAlreadyUsed is returned by Install when a marker for this jti
// already exists — the token has been replayed.
var ErrAlreadyUsed = errors.New("replay: token already used")

// Store is a directory of one-time-use markers.
type Store struct {
	dir string

	mu         sync.Mutex
	lastSweep  time.Time
	sweepEvery time.Duration
}

// Open returns a Store rooted at dir, creating the directory (mode
// 0700) if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("replay: creating marker directory: %w", err)
	}
	return &Store{dir: dir, sweepEvery: time.Minute}, nil
}

// marker is the on-disk shape of a marker file: logs/token-replay/<jti>.json
// containing the token's expiry, so a sweep can tell when the marker can
// no longer matter.
type marker struct {
	Expiry int64 `json:"exp"`
}

func (s *Store) path(jti string) string {
	return filepath.Join(s.dir, jti+".json")
}

// Install atomically consumes jti, recording expiresAt so a later sweep
// can reclaim the file once it can no longer matter (the token itself
// will have expired by then). Returns ErrAlreadyUsed if jti was already
// installed, and ErrInvalidID if jti is not a safe marker name.
func (s *Store) Install(jti string, expiresAt time.Time) error {
	if !safeName.MatchString(jti) {
		return ErrInvalidID
	}

	file, err := os.OpenFile(s.path(jti), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyUsed
		}
		return fmt.Errorf("replay: creating marker for %s: %w", jti, err)
	}
	defer file.Close()

	raw, err := json.Marshal(marker{Expiry: expiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("replay: encoding marker for %s: %w", jti, err)
	}
	if _, err := file.Write(raw); err != nil {
		return fmt.Errorf("replay: writing marker for %s: %w", jti, err)
	}
	return nil
}

// MaybeSweep runs Sweep at most once per sweepEvery interval (default
// one minute), no-op otherwise. Safe to call on every request; cheap
// when a sweep isn't due.
func (s *Store) MaybeSweep(now time.Time) (int, error) {
	s.mu.Lock()
	due := now.Sub(s.lastSweep) >= s.sweepEvery
	if due {
		s.lastSweep = now
	}
	s.mu.Unlock()

	if !due {
		return 0, nil
	}
	return s.Sweep(now)
}

// Sweep deletes every marker that is expired or malformed (unparsable
// expiry, or a name that somehow fails the safe-name check despite
// having been admitted through Install).
func (s *Store) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("replay: listing marker directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		jti, ok := strings.CutSuffix(name, ".json")
		if !ok || !safeName.MatchString(jti) {
			if err := os.Remove(filepath.Join(s.dir, name)); err == nil {
				removed++
			}
			continue
		}

		full := filepath.Join(s.dir, name)
		raw, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		var m marker
		if err := json.Unmarshal(raw, &m); err != nil {
			if err := os.Remove(full); err == nil {
				removed++
			}
			continue
		}
		if !now.Before(time.Unix(m.Expiry, 0)) {
			if err := os.Remove(full); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats reports the total number of markers currently on disk and how
// many of those are already expired (eligible for the next sweep).
// This is a diagnostic; only tests call it, and it never influences
// admission decisions.
func (s *Store) Stats(now time.Time) (total, expired int, err error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, 0, fmt.Errorf("replay: listing marker directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		total++
		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			expired++
			continue
		}
		var m marker
		if err := json.Unmarshal(raw, &m); err != nil || !now.Before(time.Unix(m.Expiry, 0)) {
			expired++
		}
	}
	return total, expired, nil
}
