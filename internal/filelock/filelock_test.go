// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package filelock

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Lock file is gone, so a second acquire should succeed immediately.
	lock2, err := Acquire(path)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestAcquireBlocksConcurrentHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := AcquireContext(ctx, path); err != ErrTimeout {
		t.Fatalf("expected ErrTimeout while lock held, got %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireSucceedsAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.json")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		lock.Release()
		close(released)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	lock2, err := AcquireContext(ctx, path)
	if err != nil {
		t.Fatalf("AcquireContext after release: %v", err)
	}
	<-released
	lock2.Release()
}
