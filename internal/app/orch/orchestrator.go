// Package orch owns the per-connection lifecycle: connect, authenticate,
// converse, disconnect. It is the only writer that touches every registry,
// so cleanup is atomic from the outside.
package orch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/dkeye/Parley/internal/metrics"
)

// SessionState is the lifecycle of one transport connection.
//
//	Connecting -> Active -> Closed
//	Connecting -> Rejected (no identity at handshake)
//
// Closed and Rejected are terminal; a closed session id never comes back.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
	StateRejected
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Relay    *app.Relay
	Guard    *app.OfferGuard
	Metrics  *metrics.Metrics
}

func New(reg *app.Registry, rooms *app.RoomManager, relay *app.Relay, guard *app.OfferGuard, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms, Relay: relay, Guard: guard, Metrics: m}
}

// Connect authenticates a new transport and registers it. An empty identity
// is rejected before anything is registered; a duplicate session id is
// rejected with the existing session untouched.
func (o *Orchestrator) Connect(uid domain.UserID, sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) error {
	if uid == "" {
		if o.Metrics != nil {
			o.Metrics.RejectedSessions.Inc()
		}
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("connection without identity rejected")
		return core.ErrUnauthorized
	}
	if err := o.Registry.Register(uid, sid, conn, cancel); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("registration rejected")
		return err
	}
	if o.Metrics != nil {
		o.Metrics.ActiveSessions.Set(float64(o.Registry.Count()))
	}
	return nil
}

// State reports the lifecycle state of a session id. Terminal states hold
// no entry, so an unknown id reads as Closed.
func (o *Orchestrator) State(sid core.SessionID) SessionState {
	if _, ok := o.Registry.UserOf(sid); ok {
		return StateActive
	}
	return StateClosed
}

// JoinRoom puts the session into a call room and runs the discovery
// handshake: the joiner learns the prior members in join order, the prior
// members learn about the joiner. Both sides then compute the same
// initiator via InitiatorFor without further coordination.
func (o *Orchestrator) JoinRoom(sid core.SessionID, roomID domain.RoomID) {
	conn, ok := o.Registry.Conn(sid)
	if !ok {
		return
	}
	res := o.Rooms.Join(roomID, sid)

	o.sendJSON(conn, map[string]any{"type": "room-joined", "room": roomID})
	o.sendJSON(conn, struct {
		Type  string           `json:"type"`
		Users []core.SessionID `json:"users"`
	}{Type: "existing-users", Users: res.Existing})

	joined, err := json.Marshal(map[string]any{"type": "user-joined", "sessionId": sid})
	if err != nil {
		return
	}
	for _, member := range res.Existing {
		if mc, ok := o.Registry.Conn(member); ok {
			if err := mc.TrySend(core.Frame(joined)); err != nil {
				log.Warn().Err(err).Str("module", "orch").Str("sid", string(member)).Msg("user-joined dropped")
			}
		}
	}
	if o.Metrics != nil {
		o.Metrics.OpenRooms.Set(float64(o.Rooms.RoomCount()))
	}
}

// Signal relays one signaling payload on behalf of a session.
func (o *Orchestrator) Signal(from core.SessionID, target string, kind app.SignalKind, payload json.RawMessage) error {
	return o.Relay.Relay(from, target, kind, payload)
}

// PeerClosed clears glare state for a reported peer-connection close,
// re-enabling future call setup between the two sessions.
func (o *Orchestrator) PeerClosed(sid, peer core.SessionID) {
	o.Guard.LinkClosed(sid, peer)
}

// Disconnect moves the session to Closed: unregister first so no late
// signal finds it, then sweep it from every room (broadcasting user-left to
// whoever remains), then discard its pending-offer state. Idempotent.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	if _, ok := o.Registry.UserOf(sid); !ok {
		return
	}
	o.Registry.Unregister(sid)

	left, err := json.Marshal(map[string]any{"type": "user-left", "sessionId": sid})
	if err == nil {
		for _, dep := range o.Rooms.LeaveAll(sid) {
			for _, member := range dep.Remaining {
				if mc, ok := o.Registry.Conn(member); ok {
					if err := mc.TrySend(core.Frame(left)); err != nil {
						log.Warn().Err(err).Str("module", "orch").Str("sid", string(member)).Msg("user-left dropped")
					}
				}
			}
		}
	}
	o.Guard.DropSession(sid)

	if o.Metrics != nil {
		o.Metrics.ActiveSessions.Set(float64(o.Registry.Count()))
		o.Metrics.OpenRooms.Set(float64(o.Rooms.RoomCount()))
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("session closed")
}

func (o *Orchestrator) sendJSON(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("sendJSON marshal")
		return
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("sendJSON dropped")
	}
}
