package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

type sessionEntry struct {
	UserID domain.UserID
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// SessionConn pairs a session id with its transport endpoint.
type SessionConn struct {
	SID  core.SessionID
	Conn core.SignalConnection
}

// Registry maps user identities to their live transport sessions.
// A user may hold several sessions (tabs, devices); a session id maps to
// exactly one user. There is no eviction: the lifecycle controller must
// unregister every session on transport close.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	byUser   map[domain.UserID]map[core.SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		byUser:   make(map[domain.UserID]map[core.SessionID]struct{}),
	}
}

// Register binds a session to its user. The existing entry is left
// untouched on a duplicate session id.
func (r *Registry) Register(uid domain.UserID, sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; ok {
		return core.ErrDuplicateSession
	}
	r.sessions[sid] = &sessionEntry{UserID: uid, Conn: conn, Cancel: cancel}
	set, ok := r.byUser[uid]
	if !ok {
		set = make(map[core.SessionID]struct{})
		r.byUser[uid] = set
	}
	set[sid] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(uid)).Msg("registered session")
	return nil
}

// Unregister is idempotent; removing an unknown session is a no-op.
func (r *Registry) Unregister(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return
	}
	delete(r.sessions, sid)
	if set, ok := r.byUser[e.UserID]; ok {
		delete(set, sid)
		if len(set) == 0 {
			delete(r.byUser, e.UserID)
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered session")
}

// UserOf resolves the identity behind a session.
func (r *Registry) UserOf(sid core.SessionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	return e.UserID, true
}

// Conn returns the transport endpoint for a session.
func (r *Registry) Conn(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

// SessionsFor returns the live session set at call time; may be empty.
func (r *Registry) SessionsFor(uid domain.UserID) []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[uid]
	out := make([]core.SessionID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

// ConnsFor returns the live endpoints of every session owned by uid.
func (r *Registry) ConnsFor(uid domain.UserID) []SessionConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[uid]
	out := make([]SessionConn, 0, len(set))
	for sid := range set {
		out = append(out, SessionConn{SID: sid, Conn: r.sessions[sid].Conn})
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel fires the session's context cancel, if any. Used to force-close
// an unresponsive transport through the normal disconnect path.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
