package app

import (
	"errors"
	"testing"

	"github.com/dkeye/Parley/internal/core"
)

func TestRegistryRegisterAndSessionsFor(t *testing.T) {
	r := NewRegistry()

	if got := r.SessionsFor("u1"); len(got) != 0 {
		t.Errorf("sessions of unknown user = %d, want 0", len(got))
	}

	if err := r.Register("u1", "s1", &fakeConn{}, nil); err != nil {
		t.Fatalf("register s1: %v", err)
	}
	if err := r.Register("u1", "s2", &fakeConn{}, nil); err != nil {
		t.Fatalf("register s2: %v", err)
	}
	if got := r.SessionsFor("u1"); len(got) != 2 {
		t.Errorf("sessions after 2 registers = %d, want 2", len(got))
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}

func TestRegistryDuplicateSession(t *testing.T) {
	r := NewRegistry()
	first := &fakeConn{}

	if err := r.Register("u1", "s1", first, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register("u2", "s1", &fakeConn{}, nil)
	if !errors.Is(err, core.ErrDuplicateSession) {
		t.Fatalf("duplicate register err = %v, want ErrDuplicateSession", err)
	}

	// Existing session untouched.
	uid, ok := r.UserOf("s1")
	if !ok || uid != "u1" {
		t.Errorf("UserOf(s1) = %q, %v; want u1, true", uid, ok)
	}
	conn, _ := r.Conn("s1")
	if conn != first {
		t.Error("duplicate register replaced the existing connection")
	}
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()

	// Unknown session is a no-op, not an error.
	r.Unregister("nope")

	if err := r.Register("u1", "s1", &fakeConn{}, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Unregister("s1")
	r.Unregister("s1")

	if got := r.SessionsFor("u1"); len(got) != 0 {
		t.Errorf("sessions after unregister = %d, want 0", len(got))
	}
	if _, ok := r.Conn("s1"); ok {
		t.Error("Conn(s1) still resolves after unregister")
	}
}

func TestRegistryIsolatesUsers(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("u1", "s1", &fakeConn{}, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("u2", "s2", &fakeConn{}, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	r.Unregister("s1")
	if len(r.SessionsFor("u1")) != 0 || len(r.SessionsFor("u2")) != 1 {
		t.Errorf("unregister crossed users: u1=%d u2=%d",
			len(r.SessionsFor("u1")), len(r.SessionsFor("u2")))
	}
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	fired := false

	if err := r.Register("u1", "s1", &fakeConn{}, func() { fired = true }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !r.Cancel("s1") {
		t.Fatal("Cancel(s1) = false, want true")
	}
	if !fired {
		t.Error("cancel func not fired")
	}
	if r.Cancel("nope") {
		t.Error("Cancel of unknown session = true, want false")
	}
}
