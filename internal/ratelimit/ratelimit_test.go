// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestAllowUnderLimit(t *testing.T) {
	limiter := New(3)
	now := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("agent-1", now) {
			t.Fatalf("Allow %d = false, want true", i)
		}
	}
	if limiter.Allow("agent-1", now) {
		t.Error("Allow over limit = true, want false")
	}
}

func TestAllowResetsOnNewMinute(t *testing.T) {
	limiter := New(1)
	minute1 := time.Date(2026, 8, 3, 10, 0, 30, 0, time.UTC)
	minute2 := time.Date(2026, 8, 3, 10, 1, 0, 0, time.UTC)

	if !limiter.Allow("agent-1", minute1) {
		t.Fatal("expected first request in minute1 to be allowed")
	}
	if limiter.Allow("agent-1", minute1) {
		t.Fatal("expected second request in minute1 to be denied")
	}
	if !limiter.Allow("agent-1", minute2) {
		t.Fatal("expected request in minute2 to be allowed after rollover")
	}
}

func TestAllowIsPerPrincipal(t *testing.T) {
	limiter := New(1)
	now := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	if !limiter.Allow("agent-1", now) {
		t.Fatal("expected agent-1 first request allowed")
	}
	if !limiter.Allow("agent-2", now) {
		t.Fatal("expected agent-2 first request allowed independently of agent-1")
	}
}

func TestAllowConcurrentNeverExceedsLimit(t *testing.T) {
	limiter := New(50)
	now := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("agent-1", now) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want exactly 50", allowed)
	}
}
