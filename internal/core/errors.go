package core

import "errors"

// Every failure here is scoped to the offending session or operation;
// none of them may take the process down.
var (
	// ErrUnauthorized rejects a transport that arrived without an identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicateSession rejects re-registration of a live session id.
	// The existing session is left untouched.
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrTargetUnreachable means a relay or fanout target has no live
	// session. Logged and dropped, never surfaced to the sender.
	ErrTargetUnreachable = errors.New("target unreachable")

	// ErrMalformedPayload means a signaling payload failed shape
	// validation. The frame is dropped; the session stays alive.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrStaleOffer marks a glare-suppressed duplicate offer.
	ErrStaleOffer = errors.New("stale offer")

	// ErrBackpressure means a recipient's send buffer is full.
	ErrBackpressure = errors.New("backpressure")
)
