// ABOUTME: Error taxonomy shared by the transport, pipeline and API clients
// ABOUTME: Classifies failures by kind and normalizes user-facing messages from response envelopes

package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Match with errors.Is.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrRefreshRejected   = errors.New("refresh rejected")
	ErrAuthRejected      = errors.New("authentication rejected")
	ErrNotFound          = errors.New("not found")
	ErrRequestFailed     = errors.New("request failed")
	ErrNetworkFailure    = errors.New("network failure")
)

// DefaultMessage is used when neither the response nor the transport offers any text.
const DefaultMessage = "An error occurred"

// Error describes a failed API call.
type Error struct {
	Kind       error
	Method     string
	Path       string
	StatusCode int    // zero when no response was received
	Message    string // normalized, safe to show to users
	Err        error  // underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteString(" ")
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString(ErrRequestFailed.Error())
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// WithKind returns a copy of e reclassified as kind. The original kind is
// not carried over so the copy matches only the new kind.
func (e *Error) WithKind(kind error) *Error {
	cp := *e
	cp.Kind = kind
	return &cp
}

// envelope captures the error-bearing fields of the standard response envelope.
type envelope struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// FromResponse classifies a non-2xx response. 401 maps to ErrAuthRejected,
// 404 to ErrNotFound, everything else to ErrRequestFailed. The message is
// taken from the envelope's message field, then its error field, then the
// status text.
func FromResponse(method, path string, status int, body []byte) *Error {
	kind := ErrRequestFailed
	switch status {
	case http.StatusUnauthorized:
		kind = ErrAuthRejected
	case http.StatusNotFound:
		kind = ErrNotFound
	}

	return &Error{
		Kind:       kind,
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    responseMessage(status, body),
	}
}

func responseMessage(status int, body []byte) string {
	var env envelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if msg := errorFieldText(env.Error); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("Request failed with status code %d", status)
}

// errorFieldText accepts "error" as a string or as an object with a message.
func errorFieldText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Message
	}
	return ""
}

// Network wraps a transport-level failure where no response was received.
func Network(ctx context.Context, method, path string, err error) *Error {
	msg := err.Error()
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		msg = "request canceled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded), isTimeout(err):
		msg = "request timed out"
	}
	return &Error{
		Kind:    ErrNetworkFailure,
		Method:  method,
		Path:    path,
		Message: msg,
		Err:     err,
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// MissingCredential reports a refresh attempt without a stored refresh token.
func MissingCredential() *Error {
	return &Error{
		Kind:    ErrMissingCredential,
		Message: "No refresh token available",
	}
}

// Message extracts the user-facing text for any error. Falls back to
// DefaultMessage when nothing better is available.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Err != nil && apiErr.Err.Error() != "" {
			return apiErr.Err.Error()
		}
		return DefaultMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultMessage
}

// MessageOr is Message with a caller-specific fallback for errors that carry no text.
func MessageOr(err error, fallback string) string {
	msg := Message(err)
	if msg == "" || msg == DefaultMessage {
		return fallback
	}
	return msg
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
