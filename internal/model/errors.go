// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind classifies a domain error for propagation and transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFoundOrForbidden
	KindForbidden
	KindConflict
	KindRateLimited
	KindProviderUnavailable
	KindProviderTimeout
	KindProviderEmptyResponse
	KindPersistence
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFoundOrForbidden:
		return "NotFoundOrForbidden"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindRateLimited:
		return "RateLimitExceeded"
	case KindProviderUnavailable:
		return "ProviderUnavailable"
	case KindProviderTimeout:
		return "ProviderTimeout"
	case KindProviderEmptyResponse:
		return "ProviderEmptyResponse"
	case KindPersistence:
		return "PersistenceError"
	default:
		return "InternalError"
	}
}

// IsProvider reports whether the kind stems from the language model provider.
func (k Kind) IsProvider() bool {
	return k == KindProviderUnavailable || k == KindProviderTimeout || k == KindProviderEmptyResponse
}

// Generic user-facing messages. Provider causes are logged, never surfaced.
const (
	MsgProviderUnavailable = "The mentor is unavailable right now. Please try again later."
	MsgProviderTimeout     = "The mentor is taking too long to respond. Please try again."
	MsgProviderEmpty       = "The mentor returned an empty response. Please try again."
	MsgRateLimited         = "You're sending messages too quickly. Please wait a moment and try again."
	MsgPersistence         = "We couldn't save your conversation. Please try again."
)

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is a typed domain error.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrNotFoundOrForbidden   = &Error{Kind: KindNotFoundOrForbidden}
	ErrForbidden             = &Error{Kind: KindForbidden}
	ErrConflict              = &Error{Kind: KindConflict}
	ErrRateLimited           = &Error{Kind: KindRateLimited}
	ErrProviderUnavailable   = &Error{Kind: KindProviderUnavailable}
	ErrProviderTimeout       = &Error{Kind: KindProviderTimeout}
	ErrProviderEmptyResponse = &Error{Kind: KindProviderEmptyResponse}
	ErrPersistence           = &Error{Kind: KindPersistence}
)

// KindOf extracts the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the message safe to show to end users.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Unexpected error"
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewValidation reports bad, user-fixable input.
func NewValidation(msg string, details any) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// NewNotFound reports a missing or not-owned resource.
func NewNotFound(msg string) *Error {
	return &Error{Kind: KindNotFoundOrForbidden, Message: msg}
}

// NewForbidden reports a resource owned by someone else.
func NewForbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NewConflict reports a duplicate resource.
func NewConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewRateLimited reports that the conversation window is full.
func NewRateLimited(details any) *Error {
	return &Error{Kind: KindRateLimited, Message: MsgRateLimited, Details: details}
}

// NewProviderUnavailable wraps a provider failure behind the generic message.
func NewProviderUnavailable(cause error) *Error {
	return &Error{Kind: KindProviderUnavailable, Message: MsgProviderUnavailable, Err: cause}
}

// NewProviderTimeout wraps a deadline or cancellation.
func NewProviderTimeout(cause error) *Error {
	return &Error{Kind: KindProviderTimeout, Message: MsgProviderTimeout, Err: cause}
}

// NewProviderEmpty reports a successful call without usable content.
func NewProviderEmpty() *Error {
	return &Error{Kind: KindProviderEmptyResponse, Message: MsgProviderEmpty}
}

// NewPersistence wraps a storage failure for operation op.
func NewPersistence(op string, cause error) *Error {
	return &Error{Kind: KindPersistence, Message: MsgPersistence, Details: map[string]string{"operation": op}, Err: cause}
}
