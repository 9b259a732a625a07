// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider shapes every invocation of the external Gmail/
// Calendar CLI tool as a subprocess call: a sanitized environment, a
// fixed argv grammar per operation, buffered output capture, and
// translation of subprocess failures into a structured error the HTTP
// layer can report without ever echoing raw stderr to a client.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Message is a provider-reported email item before any content
// shaping is applied.
type Message struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	From         string `json:"from"`
	To           string `json:"to"`
	Subject      string `json:"subject"`
	Snippet      string `json:"snippet"`
	Body         string `json:"body"`
	InternalDate string `json:"internalDate"`
}

// Attendee is a provider-reported calendar event attendee.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	Self           bool   `json:"self"`
	ResponseStatus string `json:"responseStatus"`
}

// Event is a provider-reported calendar event before field projection.
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Location    string     `json:"location"`
	HangoutLink string     `json:"hangoutLink"`
	Attendees   []Attendee `json:"attendees"`
}

// AdapterError wraps a failed subprocess invocation. Stderr is carried
// for audit logging only — internal/httpapi never includes it in an
// HTTP response body.
type AdapterError struct {
	Op       string
	ExitCode int
	Stderr   string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("provider: %s exited %d", e.Op, e.ExitCode)
}

// Adapter invokes the external provider binary.
type Adapter struct {
	binary      string
	account     string
	limiter     *rate.Limiter
	invokeLimit time.Duration
}

// New returns an Adapter that shells out to binary, scoped to account,
// throttling outbound invocations to at most ratePerSecond per second
// (the provider is an external API with its own rate limits; this
// keeps the proxy from hammering it even when its own callers are
// within their own admission limits).
func New(binary, account string, ratePerSecond float64) *Adapter {
	return &Adapter{
		binary:      binary,
		account:     account,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		invokeLimit: 30 * time.Second,
	}
}

// Ready reports whether the configured binary exists and is executable,
// without invoking it. Used by the healthz handler.
func (a *Adapter) Ready() bool {
	info, err := os.Stat(a.binary)
	if err != nil {
		return false
	}
	return info.Mode()&0111 != 0
}

func sanitizedEnvironment() []string {
	safeVars := []string{"PATH", "HOME", "LANG", "LC_ALL", "TZ", "TMPDIR"}
	var env []string
	for _, name := range safeVars {
		if value := os.Getenv(name); value != "" {
			env = append(env, name+"="+value)
		}
	}
	return env
}

// invoke runs the provider binary with argv, optionally piping stdin,
// and returns captured stdout. A non-zero exit becomes an AdapterError.
func (a *Adapter) invoke(ctx context.Context, op string, argv []string, stdin string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider: waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.invokeLimit)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.binary, argv...)
	cmd.Env = sanitizedEnvironment()
	if stdin != "" {
		cmd.Stdin = bytes.NewBufferString(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("provider: starting %s: %w", op, err)
		}
		return nil, &AdapterError{Op: op, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

// FetchUnread lists unread messages since since, in the given thread
// context mode ("full" or "latest").
func (a *Adapter) FetchUnread(ctx context.Context, since time.Time, threadContext string) ([]Message, error) {
	argv := []string{"gmail", "unread", "--account", a.account, "--since", since.UTC().Format(time.RFC3339)}
	if threadContext != "" {
		argv = append(argv, "--thread-context", threadContext)
	}

	raw, err := a.invoke(ctx, "gmail unread", argv, "")
	if err != nil {
		return nil, err
	}
	return parseMessages(raw), nil
}

// Reply sends a reply within threadID.
func (a *Adapter) Reply(ctx context.Context, threadID, to, subject, body string) error {
	argv := []string{
		"gmail", "reply",
		"--account", a.account,
		"--thread-id", threadID,
		"--to", to,
		"--subject", subject,
		"--body-file", "-",
	}
	_, err := a.invoke(ctx, "gmail reply", argv, body)
	return err
}

// Send sends a new top-level message.
func (a *Adapter) Send(ctx context.Context, to, subject, body string) error {
	argv := []string{
		"gmail", "send",
		"--account", a.account,
		"--to", to,
		"--subject", subject,
		"--body-file", "-",
	}
	_, err := a.invoke(ctx, "gmail send", argv, body)
	return err
}

// FetchEvents lists events across calendars within [start, end].
func (a *Adapter) FetchEvents(ctx context.Context, calendars []string, start, end time.Time) ([]Event, error) {
	argv := []string{"calendar", "events"}
	for _, id := range calendars {
		argv = append(argv, "--calendar", id)
	}
	argv = append(argv,
		"--start", start.UTC().Format(time.RFC3339),
		"--end", end.UTC().Format(time.RFC3339),
	)

	raw, err := a.invoke(ctx, "calendar events", argv, "")
	if err != nil {
		return nil, err
	}
	return parseEvents(raw), nil
}

// CreateEvent creates a calendar event and returns its provider-assigned id.
func (a *Adapter) CreateEvent(ctx context.Context, calendarID, summary string, start, end time.Time, attendees []string, sendUpdates string) (string, error) {
	argv := []string{
		"calendar", "create",
		"--calendar", calendarID,
		"--summary", summary,
		"--start", start.UTC().Format(time.RFC3339),
		"--end", end.UTC().Format(time.RFC3339),
	}
	for _, addr := range attendees {
		argv = append(argv, "--attendee", addr)
	}
	argv = append(argv, "--send-updates", sendUpdates)

	raw, err := a.invoke(ctx, "calendar create", argv, "")
	if err != nil {
		return "", err
	}
	return parseCreatedID(raw, "evt"), nil
}

// UpdateEvent updates an existing calendar event. Empty optional fields
// are omitted from argv entirely rather than passed as empty strings.
func (a *Adapter) UpdateEvent(ctx context.Context, calendarID, eventID, summary string, start, end *time.Time, addAttendees []string, sendUpdates string) error {
	argv := []string{
		"calendar", "update",
		"--calendar", calendarID,
		"--event", eventID,
	}
	if summary != "" {
		argv = append(argv, "--summary", summary)
	}
	if start != nil {
		argv = append(argv, "--start", start.UTC().Format(time.RFC3339))
	}
	if end != nil {
		argv = append(argv, "--end", end.UTC().Format(time.RFC3339))
	}
	for _, addr := range addAttendees {
		argv = append(argv, "--add-attendee", addr)
	}
	argv = append(argv, "--send-updates", sendUpdates)

	_, err := a.invoke(ctx, "calendar update", argv, "")
	return err
}

// parseMessages accepts a bare JSON array or an object carrying the
// list under "messages" or "items". Anything else — including a bare
// non-JSON string some earlier tooling emitted — yields an empty list
// rather than an error; a malformed stdout shape is a provider bug, not
// grounds to fail the whole request.
func parseMessages(raw []byte) []Message {
	var asArray []Message
	if json.Unmarshal(raw, &asArray) == nil {
		return asArray
	}

	var wrapped struct {
		Messages []Message `json:"messages"`
		Items    []Message `json:"items"`
	}
	if json.Unmarshal(raw, &wrapped) == nil {
		if len(wrapped.Messages) > 0 {
			return wrapped.Messages
		}
		return wrapped.Items
	}
	return nil
}

func parseEvents(raw []byte) []Event {
	var asArray []Event
	if json.Unmarshal(raw, &asArray) == nil {
		return asArray
	}

	var wrapped struct {
		Events []Event `json:"events"`
		Items  []Event `json:"items"`
	}
	if json.Unmarshal(raw, &wrapped) == nil {
		if len(wrapped.Events) > 0 {
			return wrapped.Events
		}
		return wrapped.Items
	}
	return nil
}

// parseCreatedID treats trimmed stdout as the created resource's id —
// write calls are not JSON, unlike read calls. Empty stdout (a provider
// that created the resource but printed nothing) falls back to a
// synthesized <kind>-<unixMilliseconds> id rather than an empty string.
func parseCreatedID(raw []byte, kind string) string {
	if id := strings.TrimSpace(string(raw)); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d", kind, time.Now().UnixMilli())
}
