// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the proxy's on-disk policy file.
//
// Configuration is read from a single JSONC file (JSON with // and /* */
// comments, stripped before decoding) so operators can annotate policy
// choices — why a domain is allowlisted, why a cap is set where it is — in
// the file that enforces them. There is no discovery or merging: the path
// comes from the -config command-line flag, and the
// resulting Config is immutable for the lifetime of the process. Changing
// policy requires editing the file and restarting.
package config

import (
	"errors"
	"fmt"
	"os"

	jsonenc "encoding/json"

	"github.com/tidwall/jsonc"
)

// AuthHandlingMode controls how the email handler treats messages
// classified as carrying authentication artifacts.
type AuthHandlingMode string

const (
	AuthHandlingBlock AuthHandlingMode = "block"
	AuthHandlingWarn  AuthHandlingMode = "warn"
)

// ThreadContextMode controls how much of a thread's content is returned.
type ThreadContextMode string

const (
	ThreadContextFull   ThreadContextMode = "full_thread"
	ThreadContextLatest ThreadContextMode = "latest_only"
)

// SendUpdatesMode is the Calendar API sendUpdates value used on every
// outbound mutation, regardless of what the request asked for.
type SendUpdatesMode string

const (
	SendUpdatesNone         SendUpdatesMode = "none"
	SendUpdatesAll          SendUpdatesMode = "all"
	SendUpdatesExternalOnly SendUpdatesMode = "externalOnly"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	BindAddress           string `json:"bindAddress"`
	Port                  int    `json:"port"`
	MaxRequestBodyBytes   int64  `json:"maxRequestBodyBytes"`
	RequestsPerMinute     int    `json:"requestsPerMinute"`
	ProviderBinaryPath    string `json:"providerBinaryPath"`
}

// TokenConfig holds bearer token signing settings.
type TokenConfig struct {
	APIKey          string `json:"apiKey"`
	SigningKey      string `json:"signingKey"`
	PreviousKey     string `json:"previousSigningKey,omitempty"`
	TTLSeconds      int    `json:"ttlSeconds"`
}

// EmailPolicy governs the email read/reply/send surfaces.
type EmailPolicy struct {
	MaxRecentDays     int               `json:"maxRecentDays"`
	AuthHandlingMode  AuthHandlingMode  `json:"authHandlingMode"`
	ThreadContextMode ThreadContextMode `json:"threadContextMode"`
}

// CalendarReadPolicy governs GET /v1/calendar/events.
type CalendarReadPolicy struct {
	DefaultThisWeek    bool     `json:"defaultThisWeek"`
	MaxPastDays        int      `json:"maxPastDays"`
	MaxFutureDays      int      `json:"maxFutureDays"`
	AllowLocation      bool     `json:"allowLocation"`
	AllowMeetingURLs   bool     `json:"allowMeetingUrls"`
	AllowAttendeeEmails bool    `json:"allowAttendeeEmails"`
	CalendarIDs        []string `json:"calendarIds"`
}

// CalendarWritePolicy governs POST/PATCH /v1/calendar/events.
type CalendarWritePolicy struct {
	Enabled          bool            `json:"enabled"`
	AllowedCalendars []string        `json:"allowedCalendarIds"`
	AllowAttendees   bool            `json:"allowAttendees"`
	SendUpdates      SendUpdatesMode `json:"sendUpdates"`
	MaxEventsPerHour int             `json:"maxEventsPerHour"`
	MaxEventsPerDay  int             `json:"maxEventsPerDay"`
}

// OutboundPolicy governs /v1/email/reply and /v1/email/send.
type OutboundPolicy struct {
	ReplyOnlyDefault   bool     `json:"replyOnlyDefault"`
	AllowAllRecipients bool     `json:"allowAllRecipients"`
	AllowReplyToAnyone bool     `json:"allowReplyToAnyone"`
	RecipientAllowlist []string `json:"recipientAllowlist"`
	DomainAllowlist    []string `json:"domainAllowlist"`
	MaxSendsPerHour    int      `json:"maxSendsPerHour"`
	MaxSendsPerDay     int      `json:"maxSendsPerDay"`
}

// Config is the immutable, validated on-disk policy.
type Config struct {
	Server        ServerConfig         `json:"server"`
	Token         TokenConfig          `json:"token"`
	GmailAccount  string               `json:"gmailAccount"`
	Email         EmailPolicy          `json:"email"`
	CalendarRead  CalendarReadPolicy   `json:"calendarRead"`
	CalendarWrite CalendarWritePolicy  `json:"calendarWrite"`
	Outbound      OutboundPolicy       `json:"outbound"`

	// DataDir is not part of the JSON file; Load leaves it empty and the
	// caller sets it (cmd/mailproxy copies it from the -data-dir flag).
	DataDir string `json:"-"`
}

// applyDefaults fills fields left absent from the file. For the fields
// whose zero value is a meaningful setting (calendarRead.defaultThisWeek,
// calendarRead.maxPastDays, calendarRead.maxFutureDays,
// outbound.replyOnlyDefault) it checks the raw section for the key, so an
// explicit false or 0 is kept. For every other field a zero value counts
// as absent and is replaced by the default.
func applyDefaults(raw map[string]jsonenc.RawMessage, c *Config) {
	var calendarRead, outbound map[string]jsonenc.RawMessage
	_ = jsonenc.Unmarshal(raw["calendarRead"], &calendarRead)
	_ = jsonenc.Unmarshal(raw["outbound"], &outbound)

	if !hasKey(raw, "server") || c.Server.BindAddress == "" {
		c.Server.BindAddress = orDefault(c.Server.BindAddress, "127.0.0.1")
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8843
	}
	if c.Server.MaxRequestBodyBytes == 0 {
		c.Server.MaxRequestBodyBytes = 64 * 1024
	}
	if c.Server.RequestsPerMinute == 0 {
		c.Server.RequestsPerMinute = 60
	}
	if c.Token.TTLSeconds == 0 {
		c.Token.TTLSeconds = 900
	}
	if c.Email.MaxRecentDays == 0 {
		c.Email.MaxRecentDays = 7
	}
	if c.Email.AuthHandlingMode == "" {
		c.Email.AuthHandlingMode = AuthHandlingBlock
	}
	if c.Email.ThreadContextMode == "" {
		c.Email.ThreadContextMode = ThreadContextLatest
	}
	if !hasKey(calendarRead, "defaultThisWeek") {
		c.CalendarRead.DefaultThisWeek = true
	}
	if !hasKey(calendarRead, "maxPastDays") {
		c.CalendarRead.MaxPastDays = 30
	}
	if !hasKey(calendarRead, "maxFutureDays") {
		c.CalendarRead.MaxFutureDays = 90
	}
	if c.CalendarWrite.SendUpdates == "" {
		c.CalendarWrite.SendUpdates = SendUpdatesNone
	}
	if c.CalendarWrite.MaxEventsPerHour == 0 {
		c.CalendarWrite.MaxEventsPerHour = 10
	}
	if c.CalendarWrite.MaxEventsPerDay == 0 {
		c.CalendarWrite.MaxEventsPerDay = 50
	}
	if !hasKey(outbound, "replyOnlyDefault") {
		c.Outbound.ReplyOnlyDefault = true
	}
	if c.Outbound.MaxSendsPerHour == 0 {
		c.Outbound.MaxSendsPerHour = 10
	}
	if c.Outbound.MaxSendsPerDay == 0 {
		c.Outbound.MaxSendsPerDay = 50
	}
}

func hasKey(raw map[string]jsonenc.RawMessage, key string) bool {
	_, ok := raw[key]
	return ok
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Load reads, strips comments from, and decodes the JSONC config file at
// path. It applies documented defaults for absent fields but does not
// validate — call Validate separately so callers can distinguish "file
// unreadable" from "file readable but policy incoherent".
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	stripped := jsonc.ToJSON(raw)

	var cfg Config
	if err := jsonenc.Unmarshal(stripped, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	var topLevel map[string]jsonenc.RawMessage
	if err := jsonenc.Unmarshal(stripped, &topLevel); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyDefaults(topLevel, &cfg)
	return &cfg, nil
}

// Validate checks the configuration for internal consistency. Startup
// must fail fast when the API key or signing key are empty — an empty
// secret would make every subsequent constant-time comparison
// meaningless.
func (c *Config) Validate() error {
	var errs []error

	if c.Token.APIKey == "" {
		errs = append(errs, fmt.Errorf("token.apiKey must not be empty"))
	}
	if c.Token.SigningKey == "" {
		errs = append(errs, fmt.Errorf("token.signingKey must not be empty"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.MaxRequestBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.maxRequestBodyBytes must be positive"))
	}
	if c.Server.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("server.requestsPerMinute must be positive"))
	}
	if c.Token.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("token.ttlSeconds must be positive"))
	}
	if c.Email.MaxRecentDays < 1 {
		errs = append(errs, fmt.Errorf("email.maxRecentDays must be at least 1"))
	}
	if c.Email.AuthHandlingMode != AuthHandlingBlock && c.Email.AuthHandlingMode != AuthHandlingWarn {
		errs = append(errs, fmt.Errorf("email.authHandlingMode must be %q or %q", AuthHandlingBlock, AuthHandlingWarn))
	}
	if c.Email.ThreadContextMode != ThreadContextFull && c.Email.ThreadContextMode != ThreadContextLatest {
		errs = append(errs, fmt.Errorf("email.threadContextMode must be %q or %q", ThreadContextFull, ThreadContextLatest))
	}
	if c.CalendarRead.MaxPastDays < 0 {
		errs = append(errs, fmt.Errorf("calendarRead.maxPastDays must be >= 0"))
	}
	if c.CalendarRead.MaxFutureDays < 0 {
		errs = append(errs, fmt.Errorf("calendarRead.maxFutureDays must be >= 0"))
	}
	switch c.CalendarWrite.SendUpdates {
	case SendUpdatesNone, SendUpdatesAll, SendUpdatesExternalOnly:
	default:
		errs = append(errs, fmt.Errorf("calendarWrite.sendUpdates must be one of none, all, externalOnly"))
	}
	if c.CalendarWrite.Enabled {
		if c.CalendarWrite.MaxEventsPerHour <= 0 || c.CalendarWrite.MaxEventsPerDay <= 0 {
			errs = append(errs, fmt.Errorf("calendarWrite hour/day caps must be positive when enabled"))
		}
	}
	if c.Outbound.MaxSendsPerHour <= 0 || c.Outbound.MaxSendsPerDay <= 0 {
		errs = append(errs, fmt.Errorf("outbound hour/day caps must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
