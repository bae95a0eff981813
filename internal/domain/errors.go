package domain

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned when updating a record that does not exist.
	ErrNotFound = errors.New("app not found")
	// ErrInvalidApp wraps every validation failure.
	ErrInvalidApp = errors.New("invalid app")
	// ErrAlreadySeeded is returned by a conditional seed write when the
	// collection already holds records.
	ErrAlreadySeeded = errors.New("collection already seeded")
	// ErrUploadUnavailable is returned when no blob store is configured.
	ErrUploadUnavailable = errors.New("asset upload is not configured")
)

// providerPrefix matches the vendor tag some client libraries put in
// front of their messages ("redis: connection refused").
var providerPrefix = regexp.MustCompile(`(?i)^(firebase|redis|minio|sqlite|gorm):\s*`)

// StripProviderPrefix removes a known provider tag from the start of msg.
func StripProviderPrefix(msg string) string {
	return providerPrefix.ReplaceAllString(msg, "")
}

// WriteError is returned when a create, update, delete or batch write is
// rejected by the document store.
type WriteError struct {
	Op  string // create | update | delete | batch
	ID  string // empty for create and batch
	Err error

	// Message, when set, replaces Err's text in Error().
	Message string
}

func (e *WriteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return e.Err.Error()
}

func (e *WriteError) Unwrap() error { return e.Err }

// NewWriteError wraps err for operation op on record id.
func NewWriteError(op, id string, err error) *WriteError {
	return &WriteError{Op: op, ID: id, Err: err}
}

// ForDisplay returns a copy of e whose message has the provider prefix
// stripped. The wrapped error is kept for errors.Is/As.
func (e *WriteError) ForDisplay() *WriteError {
	out := *e
	out.Message = StripProviderPrefix(e.Error())
	return &out
}

// UploadError is returned when an asset could not be stored.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "upload failed: " + StripProviderPrefix(e.Err.Error()) }
func (e *UploadError) Unwrap() error { return e.Err }

// ProbeError is a soft failure of the screenshot probe. Callers are
// expected to offer a manual upload instead.
type ProbeError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("screenshot probe for %q failed: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("screenshot probe for %q failed: %s", e.URL, e.Reason)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// SubscriptionError reports a failure of the live listener.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string { return "subscription failed: " + e.Err.Error() }
func (e *SubscriptionError) Unwrap() error { return e.Err }
