package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/dkeye/Parley/internal/metrics"
)

// EventKind names a chat-domain event on the wire.
type EventKind string

const (
	EventNewMessage     EventKind = "new-message"
	EventMessageUpdated EventKind = "message-updated"
	EventMessageDeleted EventKind = "message-deleted"
)

type chatEnvelope struct {
	Type    EventKind       `json:"type"`
	Message *domain.Message `json:"message"`
}

// Fanout delivers chat events to every live session of a conversation's two
// participants. Targets are recomputed from the registry per event, never
// cached; an offline session simply misses the live event and backfills via
// history later. Per-connection send buffers keep delivery FIFO for a given
// recipient.
type Fanout struct {
	Registry *Registry
	Metrics  *metrics.Metrics
}

func NewFanout(reg *Registry, m *metrics.Metrics) *Fanout {
	return &Fanout{Registry: reg, Metrics: m}
}

// Publish sends one event to the live sessions of both participants and
// returns how many sessions were notified. The sender's own sessions are
// included on purpose: echo-to-self keeps a user's other devices in sync.
func (f *Fanout) Publish(a, b domain.UserID, kind EventKind, msg *domain.Message) int {
	frame, err := json.Marshal(chatEnvelope{Type: kind, Message: msg})
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("event marshal")
		return 0
	}

	seen := make(map[core.SessionID]struct{})
	targets := f.Registry.ConnsFor(a)
	if b != a {
		targets = append(targets, f.Registry.ConnsFor(b)...)
	}

	notified := 0
	for _, t := range targets {
		if _, dup := seen[t.SID]; dup {
			continue
		}
		seen[t.SID] = struct{}{}
		if err := t.Conn.TrySend(core.Frame(frame)); err != nil {
			log.Warn().Err(err).Str("module", "app.fanout").Str("sid", string(t.SID)).Msg("fanout send dropped")
			continue
		}
		notified++
	}
	if f.Metrics != nil {
		f.Metrics.FanoutTotal.WithLabelValues(string(kind)).Add(float64(notified))
	}
	log.Debug().Str("module", "app.fanout").Str("kind", string(kind)).Int("notified", notified).Msg("event published")
	return notified
}
