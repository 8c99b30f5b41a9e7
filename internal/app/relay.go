package app

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/dkeye/Parley/internal/metrics"
)

// UserAliasPrefix marks a relay target that names a user identity rather
// than a single session. Kept identical across reconnects; clients depend
// on the shape.
const UserAliasPrefix = "user_"

// SignalKind is the coarse shape of a signaling payload, decided by the
// transport adapter before the relay sees it.
type SignalKind int

const (
	SignalOffer SignalKind = iota
	SignalAnswer
	SignalCandidate
)

// InitiatorFor deterministically picks which of two sessions initiates a
// connection. Both ends compute the same answer independently, so neither
// has to negotiate who sends the first offer. The lexicographic order over
// opaque session ids is the whole contract; do not replace it with a
// randomized or negotiated tie-break.
func InitiatorFor(a, b core.SessionID) core.SessionID {
	if strings.Compare(string(a), string(b)) <= 0 {
		return a
	}
	return b
}

type signalEnvelope struct {
	Type   string          `json:"type"`
	From   domain.UserID   `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// Relay routes offer/answer/candidate payloads between sessions and applies
// glare suppression. Delivery is best effort: an unreachable target is
// logged and dropped, the sender is never told synchronously.
type Relay struct {
	Registry *Registry
	Guard    *OfferGuard
	Metrics  *metrics.Metrics
}

func NewRelay(reg *Registry, guard *OfferGuard, m *metrics.Metrics) *Relay {
	return &Relay{Registry: reg, Guard: guard, Metrics: m}
}

// Relay forwards one payload from a session to a target, which is either a
// session id or a user alias ("user_<id>"). Offers pass through the glare
// guard per target session; stale ones are discarded without error to the
// sender.
func (r *Relay) Relay(from core.SessionID, target string, kind SignalKind, payload json.RawMessage) error {
	fromUser, ok := r.Registry.UserOf(from)
	if !ok {
		return core.ErrUnauthorized
	}

	targets := r.resolve(target)
	if len(targets) == 0 {
		log.Warn().Str("module", "app.relay").Str("from", string(from)).Str("target", target).Msg("relay target unreachable")
		r.count("unreachable")
		return core.ErrTargetUnreachable
	}

	frame, err := json.Marshal(signalEnvelope{Type: "signal", From: fromUser, Signal: payload})
	if err != nil {
		return core.ErrMalformedPayload
	}

	delivered := 0
	for _, t := range targets {
		if t.SID == from {
			continue
		}
		if kind == SignalOffer {
			switch r.Guard.OnOffer(t.SID, from) {
			case OfferStale:
				log.Warn().Err(core.ErrStaleOffer).Str("module", "app.relay").Str("from", string(from)).Str("to", string(t.SID)).Msg("offer suppressed")
				if r.Metrics != nil {
					r.Metrics.GlareSuppressed.Inc()
				}
				continue
			case OfferFresh, OfferRenegotiation:
			}
			r.Guard.NoteInitiated(from, t.SID)
		}
		if err := t.Conn.TrySend(core.Frame(frame)); err != nil {
			log.Warn().Err(err).Str("module", "app.relay").Str("to", string(t.SID)).Msg("relay send dropped")
			continue
		}
		delivered++
	}
	if delivered == 0 {
		r.count("unreachable")
		return core.ErrTargetUnreachable
	}
	r.count("delivered")
	log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("target", target).Int("delivered", delivered).Msg("signal relayed")
	return nil
}

func (r *Relay) resolve(target string) []SessionConn {
	if uid, ok := strings.CutPrefix(target, UserAliasPrefix); ok {
		return r.Registry.ConnsFor(domain.UserID(uid))
	}
	sid := core.SessionID(target)
	conn, ok := r.Registry.Conn(sid)
	if !ok {
		return nil
	}
	return []SessionConn{{SID: sid, Conn: conn}}
}

func (r *Relay) count(result string) {
	if r.Metrics != nil {
		r.Metrics.SignalsTotal.WithLabelValues(result).Inc()
	}
}
