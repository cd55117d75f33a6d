package models

import "errors"

// Sentinel errors for the relay engine. Callers match with errors.Is; the
// wrapped chain carries the diagnostic detail.
var (
	// ErrSessionNotFound means the caller referenced an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDispatchFailed means the messaging provider rejected or failed to
	// deliver an outbound message. The engine never retries; retry policy
	// belongs to the caller.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrUnattributableReply means an inbound reply carried no resolvable
	// correlation key. Logged and discarded, never surfaced to the provider.
	ErrUnattributableReply = errors.New("unattributable reply")

	// ErrDuplicateEvent means a webhook event was already applied and is
	// being discarded idempotently.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrUnknownMessage means a status callback referenced a message id we
	// never dispatched (or no longer track).
	ErrUnknownMessage = errors.New("unknown message")
)
