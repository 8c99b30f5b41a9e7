package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/Parley/internal/domain"
)

func testMessage() *domain.Message {
	return &domain.Message{
		ID:         "m1",
		SenderID:   "u1",
		ReceiverID: "u2",
		Content:    "hello",
		CreatedAt:  time.Unix(1700000000, 0),
	}
}

func TestFanoutNotifiesBothParticipants(t *testing.T) {
	reg := NewRegistry()
	f := NewFanout(reg, nil)

	sender := &fakeConn{}
	recvA := &fakeConn{}
	recvB := &fakeConn{}
	stranger := &fakeConn{}
	reg.Register("u1", "s1", sender, nil)
	reg.Register("u2", "s2a", recvA, nil)
	reg.Register("u2", "s2b", recvB, nil)
	reg.Register("u3", "s3", stranger, nil)

	n := f.Publish("u1", "u2", EventNewMessage, testMessage())
	if n != 3 {
		t.Errorf("notified = %d, want 3 (sender echo + both receiver sessions)", n)
	}
	// Echo-to-self keeps the sender's other devices in sync.
	if sender.count() != 1 {
		t.Errorf("sender got %d frames, want 1", sender.count())
	}
	if recvA.count() != 1 || recvB.count() != 1 {
		t.Errorf("receiver sessions got %d/%d frames, want 1/1", recvA.count(), recvB.count())
	}
	if stranger.count() != 0 {
		t.Errorf("stranger got %d frames, want 0", stranger.count())
	}

	var env struct {
		Type    string          `json:"type"`
		Message *domain.Message `json:"message"`
	}
	if err := json.Unmarshal(recvA.frames[0], &env); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if env.Type != string(EventNewMessage) || env.Message.Content != "hello" {
		t.Errorf("event = %+v, want new-message with content", env)
	}
}

func TestFanoutRecomputesTargetsPerEvent(t *testing.T) {
	reg := NewRegistry()
	f := NewFanout(reg, nil)
	recv := &fakeConn{}
	reg.Register("u2", "s2", recv, nil)

	if n := f.Publish("u1", "u2", EventNewMessage, testMessage()); n != 1 {
		t.Fatalf("notified = %d, want 1", n)
	}

	// Receiver drops offline; the next event must find zero targets, not a
	// cached stale set.
	reg.Unregister("s2")
	if n := f.Publish("u1", "u2", EventMessageUpdated, testMessage()); n != 0 {
		t.Errorf("notified after disconnect = %d, want 0", n)
	}

	late := &fakeConn{}
	reg.Register("u2", "s2x", late, nil)
	if n := f.Publish("u1", "u2", EventMessageDeleted, testMessage()); n != 1 {
		t.Errorf("notified after reconnect = %d, want 1", n)
	}
	if late.count() != 1 {
		t.Errorf("reconnected session got %d frames, want 1", late.count())
	}
}

func TestFanoutSelfConversation(t *testing.T) {
	reg := NewRegistry()
	f := NewFanout(reg, nil)
	a := &fakeConn{}
	b := &fakeConn{}
	reg.Register("u1", "s1a", a, nil)
	reg.Register("u1", "s1b", b, nil)

	// Both participants are the same user: each session notified once.
	if n := f.Publish("u1", "u1", EventNewMessage, testMessage()); n != 2 {
		t.Errorf("notified = %d, want 2", n)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("sessions got %d/%d frames, want 1/1", a.count(), b.count())
	}
}

func TestFanoutOrderPerConnection(t *testing.T) {
	reg := NewRegistry()
	f := NewFanout(reg, nil)
	recv := &fakeConn{}
	reg.Register("u2", "s2", recv, nil)

	f.Publish("u1", "u2", EventNewMessage, testMessage())
	f.Publish("u1", "u2", EventMessageUpdated, testMessage())
	f.Publish("u1", "u2", EventMessageDeleted, testMessage())

	got := recv.types(t)
	want := []string{"new-message", "message-updated", "message-deleted"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", got, want)
		}
	}
}

func TestFanoutSkipsBackpressuredSession(t *testing.T) {
	reg := NewRegistry()
	f := NewFanout(reg, nil)
	slow := &fakeConn{fail: true}
	ok := &fakeConn{}
	reg.Register("u2", "slow", slow, nil)
	reg.Register("u2", "ok", ok, nil)

	if n := f.Publish("u1", "u2", EventNewMessage, testMessage()); n != 1 {
		t.Errorf("notified = %d, want 1 (slow session dropped)", n)
	}
	if ok.count() != 1 {
		t.Errorf("healthy session got %d frames, want 1", ok.count())
	}
}
