package domain

// RoomID is an opaque, client-chosen rendezvous token for call signaling.
// A room exists only while it has members; there is no room entity beyond
// its membership.
type RoomID string
