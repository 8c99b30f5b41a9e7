package app

import "testing"

func TestOfferGuardFreshThenStale(t *testing.T) {
	g := NewOfferGuard()

	if d := g.OnOffer("x", "y"); d != OfferFresh {
		t.Fatalf("first offer decision = %v, want OfferFresh", d)
	}
	// y is now pending for x: a retransmission is stale.
	if d := g.OnOffer("x", "y"); d != OfferStale {
		t.Fatalf("duplicate offer decision = %v, want OfferStale", d)
	}

	pending := g.Pending("x")
	if len(pending) != 1 || pending[0] != "y" {
		t.Errorf("pending = %v, want [y]", pending)
	}
}

func TestOfferGuardRenegotiationAfterInitiating(t *testing.T) {
	g := NewOfferGuard()

	// x initiated a connection to y; a counter offer from y must be folded
	// into the existing link, not treated as a fresh call.
	g.NoteInitiated("x", "y")
	if d := g.OnOffer("x", "y"); d != OfferRenegotiation {
		t.Fatalf("offer on initiated link = %v, want OfferRenegotiation", d)
	}
}

func TestOfferGuardSimultaneousOffers(t *testing.T) {
	g := NewOfferGuard()

	// Both sides offer at the same time. Each side's first incoming offer
	// is fresh; anything after that for the same pair never opens a second
	// connection.
	dx := g.OnOffer("x", "y")
	g.NoteInitiated("y", "x")
	dy := g.OnOffer("y", "x")
	g.NoteInitiated("x", "y")

	if dx != OfferFresh {
		t.Errorf("x's incoming offer = %v, want OfferFresh", dx)
	}
	if dy == OfferFresh {
		t.Errorf("y's incoming offer = %v, want suppressed or renegotiation", dy)
	}
	if d := g.OnOffer("x", "y"); d == OfferFresh {
		t.Errorf("retransmission opened a second connection: %v", d)
	}
}

func TestOfferGuardLinkClosedReenables(t *testing.T) {
	g := NewOfferGuard()

	g.OnOffer("x", "y")
	g.LinkClosed("x", "y")

	if g.Linked("x", "y") || g.Linked("y", "x") {
		t.Fatal("link state survived LinkClosed")
	}
	if d := g.OnOffer("x", "y"); d != OfferFresh {
		t.Fatalf("offer after close = %v, want OfferFresh", d)
	}
}

func TestOfferGuardDropSession(t *testing.T) {
	g := NewOfferGuard()

	g.OnOffer("x", "y")
	g.OnOffer("y", "x")
	g.OnOffer("z", "x")

	g.DropSession("x")

	if len(g.Pending("x")) != 0 {
		t.Error("dropped session still owns pending offers")
	}
	if g.Linked("y", "x") || g.Linked("z", "x") {
		t.Error("dropped session still present in other sessions' link sets")
	}
}
