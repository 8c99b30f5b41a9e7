package core

// Frame is a raw wire payload (JSON text on the signal socket).
type Frame []byte

// SessionID identifies one live transport connection. It is distinct from
// the user identity that authenticated it; a user may hold several.
type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
