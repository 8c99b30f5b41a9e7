package app

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/Parley/internal/core"
)

func newTestRelay(t *testing.T) (*Relay, *Registry) {
	t.Helper()
	reg := NewRegistry()
	return NewRelay(reg, NewOfferGuard(), nil), reg
}

func TestInitiatorForDeterministic(t *testing.T) {
	pairs := [][2]core.SessionID{
		{"abc", "abd"},
		{"s1", "s2"},
		{"zzz", "aaa"},
		{"same", "same"},
	}
	for _, p := range pairs {
		ab := InitiatorFor(p[0], p[1])
		ba := InitiatorFor(p[1], p[0])
		if ab != ba {
			t.Errorf("InitiatorFor(%q,%q)=%q but InitiatorFor(%q,%q)=%q",
				p[0], p[1], ab, p[1], p[0], ba)
		}
		if ab != p[0] && ab != p[1] {
			t.Errorf("InitiatorFor(%q,%q)=%q, not one of the pair", p[0], p[1], ab)
		}
	}
}

func offerPayload() json.RawMessage {
	return json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
}

func TestRelayToSessionID(t *testing.T) {
	r, reg := newTestRelay(t)
	target := &fakeConn{}
	if err := reg.Register("u1", "s1", &fakeConn{}, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("u2", "s2", target, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := r.Relay("s1", "s2", SignalCandidate, json.RawMessage(`{"candidate":{"candidate":"c"}}`)); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if target.count() != 1 {
		t.Fatalf("target got %d frames, want 1", target.count())
	}

	var env struct {
		Type   string          `json:"type"`
		From   string          `json:"from"`
		Signal json.RawMessage `json:"signal"`
	}
	if err := json.Unmarshal(target.frames[0], &env); err != nil {
		t.Fatalf("unmarshal relayed frame: %v", err)
	}
	if env.Type != "signal" || env.From != "u1" {
		t.Errorf("envelope = %+v, want type=signal from=u1", env)
	}
	if len(env.Signal) == 0 {
		t.Error("payload not forwarded")
	}
}

func TestRelayToUserAlias(t *testing.T) {
	r, reg := newTestRelay(t)
	a := &fakeConn{}
	b := &fakeConn{}
	other := &fakeConn{}
	reg.Register("u1", "s1", &fakeConn{}, nil)
	reg.Register("u2", "s2a", a, nil)
	reg.Register("u2", "s2b", b, nil)
	reg.Register("u3", "s3", other, nil)

	if err := r.Relay("s1", "user_u2", SignalAnswer, json.RawMessage(`{"type":"answer","sdp":"v=0"}`)); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("u2 sessions got %d/%d frames, want 1/1", a.count(), b.count())
	}
	if other.count() != 0 {
		t.Errorf("unrelated user got %d frames, want 0", other.count())
	}
}

func TestRelayTargetUnreachable(t *testing.T) {
	r, reg := newTestRelay(t)
	reg.Register("u1", "s1", &fakeConn{}, nil)

	err := r.Relay("s1", "gone", SignalCandidate, json.RawMessage(`{"candidate":{"candidate":"c"}}`))
	if !errors.Is(err, core.ErrTargetUnreachable) {
		t.Errorf("relay to unknown session err = %v, want ErrTargetUnreachable", err)
	}
	err = r.Relay("s1", "user_nobody", SignalCandidate, json.RawMessage(`{"candidate":{"candidate":"c"}}`))
	if !errors.Is(err, core.ErrTargetUnreachable) {
		t.Errorf("relay to offline user err = %v, want ErrTargetUnreachable", err)
	}
}

func TestRelayUnregisteredSender(t *testing.T) {
	r, reg := newTestRelay(t)
	reg.Register("u2", "s2", &fakeConn{}, nil)

	err := r.Relay("ghost", "s2", SignalOffer, offerPayload())
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("relay from unknown sender err = %v, want ErrUnauthorized", err)
	}
}

func TestRelayGlareSuppression(t *testing.T) {
	r, reg := newTestRelay(t)
	x := &fakeConn{}
	y := &fakeConn{}
	reg.Register("ux", "x", x, nil)
	reg.Register("uy", "y", y, nil)

	// Both sides send an offer for each other at "the same time". The
	// first one through creates the answering side on y; the counter
	// offer folds into x's already-initiated link; a retransmission of
	// the original is suppressed entirely.
	if err := r.Relay("x", "y", SignalOffer, offerPayload()); err != nil {
		t.Fatalf("x->y offer: %v", err)
	}
	if err := r.Relay("y", "x", SignalOffer, offerPayload()); err != nil {
		t.Fatalf("y->x offer: %v", err)
	}
	if y.count() != 1 || x.count() != 1 {
		t.Fatalf("after cross offers x=%d y=%d frames, want 1/1", x.count(), y.count())
	}

	// Duplicate of x's offer: y already answered x, so it is stale and y
	// must not see it.
	err := r.Relay("x", "y", SignalOffer, offerPayload())
	if !errors.Is(err, core.ErrTargetUnreachable) {
		t.Fatalf("stale offer relay err = %v, want ErrTargetUnreachable", err)
	}
	if y.count() != 1 {
		t.Errorf("stale offer delivered: y has %d frames, want 1", y.count())
	}

	// After the link closes, calling again works.
	r.Guard.LinkClosed("x", "y")
	if err := r.Relay("x", "y", SignalOffer, offerPayload()); err != nil {
		t.Fatalf("offer after close: %v", err)
	}
	if y.count() != 2 {
		t.Errorf("y has %d frames after re-call, want 2", y.count())
	}
}
