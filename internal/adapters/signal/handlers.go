package signal

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

func (ctl *Controller) handleJoinRoom(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("bad join-room payload")
		ctl.sendJSON(conn, map[string]any{"type": "error", "error": "bad_payload"})
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("join-room")
	ctl.Orch.JoinRoom(sid, domain.RoomID(p.Room))
}

func (ctl *Controller) handleSignalFrame(sid core.SessionID, data []byte) {
	if !ctl.limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("signal rate limited")
		return
	}

	var p struct {
		Type   string          `json:"type"`
		To     string          `json:"to"`
		Signal json.RawMessage `json:"signal"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" || len(p.Signal) == 0 {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("bad signal payload")
		return
	}

	kind, err := classifySignal(p.Signal)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("malformed signal dropped")
		return
	}

	if err := ctl.Orch.Signal(sid, p.To, kind, p.Signal); err != nil {
		// Best effort: the sender is not told about unreachable targets.
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("to", p.To).Msg("relay failed")
	}
}

// handleClose clears glare state when the client reports a peer connection
// closed, so the pair can call again later.
func (ctl *Controller) handleClose(sid core.SessionID, data []byte) {
	var p struct {
		Type string `json:"type"`
		Peer string `json:"peer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Peer == "" {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("bad close payload")
		return
	}
	ctl.Orch.PeerClosed(sid, core.SessionID(p.Peer))
}

func (ctl *Controller) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, map[string]any{"type": "pong"})
}

// classifySignal validates the opaque blob just enough to route it: an SDP
// must parse as an offer or answer, a candidate must carry one. The relay
// forwards the original bytes untouched either way.
func classifySignal(raw json.RawMessage) (app.SignalKind, error) {
	var probe struct {
		Type      string                   `json:"type"`
		SDP       string                   `json:"sdp"`
		Candidate *webrtc.ICECandidateInit `json:"candidate"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, core.ErrMalformedPayload
	}
	switch {
	case probe.Type == "offer" && probe.SDP != "":
		return app.SignalOffer, nil
	case probe.Type == "answer" && probe.SDP != "":
		return app.SignalAnswer, nil
	case probe.Candidate != nil && probe.Candidate.Candidate != "":
		return app.SignalCandidate, nil
	default:
		return 0, errors.Join(core.ErrMalformedPayload, errors.New("unrecognized signal shape"))
	}
}
