package app

import (
	"sync"

	"github.com/dkeye/Parley/internal/core"
)

// OfferDecision classifies an inbound offer against the receiver's
// per-peer link state.
type OfferDecision int

const (
	// OfferFresh: no link to the peer yet; forward and open the answering
	// side of a new connection.
	OfferFresh OfferDecision = iota
	// OfferRenegotiation: a live link exists that the receiver initiated;
	// forward the payload into the existing connection.
	OfferRenegotiation
	// OfferStale: the receiver already answered this peer; a duplicate or
	// late retransmission, discard silently.
	OfferStale
)

// linkState tracks one directed peer relationship. live means a connection
// object exists on the owner's side; pending means the owner answered the
// peer's offer and the connection has not reported closed yet.
type linkState struct {
	live    bool
	pending bool
}

// peerLinks is one session's view of its peers. Each session has its own
// lock so glare checks for unrelated sessions never serialize.
type peerLinks struct {
	mu    sync.Mutex
	links map[core.SessionID]*linkState
}

// OfferGuard arbitrates call-initiation races. When two sessions offer to
// each other simultaneously, exactly one offer per side survives: the
// duplicate is suppressed as stale, or folded into the existing link as a
// renegotiation. State is cleared when the link closes or the session
// disconnects.
type OfferGuard struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*peerLinks
}

func NewOfferGuard() *OfferGuard {
	return &OfferGuard{sessions: make(map[core.SessionID]*peerLinks)}
}

func (g *OfferGuard) linksOf(sid core.SessionID) *peerLinks {
	g.mu.RLock()
	pl, ok := g.sessions[sid]
	g.mu.RUnlock()
	if ok {
		return pl
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if pl, ok = g.sessions[sid]; ok {
		return pl
	}
	pl = &peerLinks{links: make(map[core.SessionID]*linkState)}
	g.sessions[sid] = pl
	return pl
}

// OnOffer classifies an offer from peer arriving at owner and records the
// answering side on a fresh offer.
func (g *OfferGuard) OnOffer(owner, peer core.SessionID) OfferDecision {
	pl := g.linksOf(owner)
	pl.mu.Lock()
	defer pl.mu.Unlock()
	ls, ok := pl.links[peer]
	switch {
	case !ok:
		pl.links[peer] = &linkState{live: true, pending: true}
		return OfferFresh
	case ls.pending:
		return OfferStale
	default:
		return OfferRenegotiation
	}
}

// NoteInitiated records that owner sent an offer to peer, so a counter
// offer from that peer later reads as renegotiation, not a fresh call.
func (g *OfferGuard) NoteInitiated(owner, peer core.SessionID) {
	pl := g.linksOf(owner)
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if _, ok := pl.links[peer]; !ok {
		pl.links[peer] = &linkState{live: true}
	}
}

// LinkClosed clears the pair in both directions, re-enabling future call
// setup between the same two sessions.
func (g *OfferGuard) LinkClosed(a, b core.SessionID) {
	g.clear(a, b)
	g.clear(b, a)
}

func (g *OfferGuard) clear(owner, peer core.SessionID) {
	g.mu.RLock()
	pl, ok := g.sessions[owner]
	g.mu.RUnlock()
	if !ok {
		return
	}
	pl.mu.Lock()
	delete(pl.links, peer)
	pl.mu.Unlock()
}

// DropSession discards all link state owned by sid and removes sid from
// every other session's link set.
func (g *OfferGuard) DropSession(sid core.SessionID) {
	g.mu.Lock()
	delete(g.sessions, sid)
	others := make([]*peerLinks, 0, len(g.sessions))
	for _, pl := range g.sessions {
		others = append(others, pl)
	}
	g.mu.Unlock()

	for _, pl := range others {
		pl.mu.Lock()
		delete(pl.links, sid)
		pl.mu.Unlock()
	}
}

// Pending reports the peers sid has answered but not yet closed.
func (g *OfferGuard) Pending(sid core.SessionID) []core.SessionID {
	g.mu.RLock()
	pl, ok := g.sessions[sid]
	g.mu.RUnlock()
	if !ok {
		return nil
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	out := make([]core.SessionID, 0, len(pl.links))
	for peer, ls := range pl.links {
		if ls.pending {
			out = append(out, peer)
		}
	}
	return out
}

// Linked reports whether sid holds any link state for peer. Used by tests
// and the cleanup path.
func (g *OfferGuard) Linked(sid, peer core.SessionID) bool {
	g.mu.RLock()
	pl, ok := g.sessions[sid]
	g.mu.RUnlock()
	if !ok {
		return false
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	_, ok = pl.links[peer]
	return ok
}
