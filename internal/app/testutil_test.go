package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/Parley/internal/core"
)

// fakeConn captures frames instead of writing to a socket.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return core.ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) types(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(fr, &env); err != nil {
			t.Fatalf("captured frame is not JSON: %v", err)
		}
		out = append(out, env.Type)
	}
	return out
}
