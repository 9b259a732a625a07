// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package filelock provides a cross-process mutual-exclusion lock built
// from a sibling lock file created with O_CREATE|O_EXCL. It backs the
// quota counters, which are read-modify-write state shared by any number
// of mailproxy processes reading the same data directory. The replay
// marker store does not use it: each marker file is itself created with
// O_CREATE|O_EXCL.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrTimeout is returned by Acquire when the lock could not be obtained
// within the bounded retry window.
var ErrTimeout = errors.New("filelock: timed out waiting for lock")

const (
	defaultRetryInterval = 10 * time.Millisecond
	defaultTimeout       = time.Second
)

// Lock represents a held exclusive lock on path. Release deletes the
// lock file, which is the only thing that makes it "held" in the first
// place — there is no flock(2) here, just the atomicity of O_EXCL
// file creation.
type Lock struct {
	path string
	file *os.File
}

// Acquire creates the lock file at path+".lock", retrying on a short
// bounded spin if another process holds it. It gives up and returns
// ErrTimeout after defaultTimeout. Callers that want a different bound
// should use AcquireContext.
func Acquire(path string) (*Lock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return AcquireContext(ctx, path)
}

// AcquireContext behaves like Acquire but yields to ctx's deadline or
// cancellation instead of a fixed timeout.
func AcquireContext(ctx context.Context, path string) (*Lock, error) {
	lockPath := path + ".lock"
	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for {
		file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			return &Lock{path: lockPath, file: file}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("filelock: creating %s: %w", lockPath, err)
		}

		select {
		case <-ctx.Done():
			return nil, ErrTimeout
		case <-ticker.C:
		}
	}
}

// Release deletes the lock file, making it available to the next
// Acquire caller. Release is safe to call at most once per Lock.
func (l *Lock) Release() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("filelock: closing %s: %w", l.path, err)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("filelock: removing %s: %w", l.path, err)
	}
	return nil
}
