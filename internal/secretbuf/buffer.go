// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secretbuf provides a memory-safe buffer for sensitive
// configuration values such as the API key and token signing keys.
//
// Buffer allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close the
// memory is zeroed, unlocked, and unmapped.
//
// This protects secrets held in the proxy's own memory. It says nothing
// about secrets at rest: the audit log and config file on disk are
// ordinary files, unencrypted.
package secretbuf

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive data in memory that is locked against swapping,
// excluded from core dumps, and zeroed on close. A Buffer must not be
// copied after creation.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a new secret buffer of the given size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secretbuf: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secretbuf: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secretbuf: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secretbuf: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{data: data, length: size}, nil
}

// NewFromString creates a secret buffer from a string. The caller's string
// itself cannot be zeroed (Go strings are immutable), but the copy taken
// here is the only one held long-term by this process.
func NewFromString(source string) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secretbuf: cannot create buffer from empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	return buffer, nil
}

// Bytes returns the secret data. The returned slice points directly into
// the mmap region — do not retain it beyond the Buffer's lifetime. Panics
// if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secretbuf: read from closed buffer")
	}
	return b.data[:b.length]
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Equal reports whether candidate matches the buffer's contents, in time
// independent of candidate's content and of where the two differ. On a
// length mismatch it runs a compare of the stored secret against itself
// before returning false, so the cost follows the stored length rather
// than the caller-supplied one; the slices are not padded to a common size.
func (b *Buffer) Equal(candidate []byte) bool {
	b.mu.Lock()
	stored := b.data[:b.length]
	b.mu.Unlock()

	if len(stored) != len(candidate) {
		// Still run a constant-time compare of the stored secret
		// against itself so a mismatching length costs about as much
		// as a mismatching value, not a distinguishable fast exit.
		subtle.ConstantTimeCompare(stored, stored)
		return false
	}
	return subtle.ConstantTimeCompare(stored, candidate) == 1
}

// Close zeros the buffer contents and unlocks/unmaps the memory. Close is
// idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	for index := range b.data {
		b.data[index] = 0
	}

	var firstError error
	if err := unix.Munlock(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secretbuf: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secretbuf: munmap failed: %w", err)
	}
	b.data = nil
	return firstError
}
