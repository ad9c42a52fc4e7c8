package realtime

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type fakeConn struct {
	mu      sync.Mutex
	writes  []any
	failing bool
	closed  bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("write: broken pipe")
	}
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBroadcastReachesAllPeersWithNoFilter(t *testing.T) {
	h := testHub()
	a, b := &fakeConn{}, &fakeConn{}
	h.Register("client-a", "term-1", RolePOS, a)
	h.Register("client-b", "term-2", RoleKDS, b)

	h.Broadcast("order:status", map[string]string{"id": "o1"}, nil)

	if a.writeCount() != 1 || b.writeCount() != 1 {
		t.Fatalf("got writes a=%d b=%d, want 1 each", a.writeCount(), b.writeCount())
	}
}

func TestBroadcastFiltersByRole(t *testing.T) {
	h := testHub()
	pos, kds := &fakeConn{}, &fakeConn{}
	h.Register("client-pos", "term-1", RolePOS, pos)
	h.Register("client-kds", "term-2", RoleKDS, kds)

	h.Broadcast("order:created", map[string]string{"id": "o1"}, &BroadcastFilter{Role: RoleKDS})

	if pos.writeCount() != 0 {
		t.Fatalf("pos peer got %d writes, want 0 (filtered by role)", pos.writeCount())
	}
	if kds.writeCount() != 1 {
		t.Fatalf("kds peer got %d writes, want 1", kds.writeCount())
	}
}

func TestBroadcastExcludesOriginatingClient(t *testing.T) {
	h := testHub()
	a, b := &fakeConn{}, &fakeConn{}
	h.Register("client-a", "term-1", RolePOS, a)
	h.Register("client-b", "term-2", RolePOS, b)

	h.Broadcast("table:updated", nil, &BroadcastFilter{ExcludeClient: "client-a"})

	if a.writeCount() != 0 {
		t.Fatalf("excluded client got %d writes, want 0", a.writeCount())
	}
	if b.writeCount() != 1 {
		t.Fatalf("other client got %d writes, want 1", b.writeCount())
	}
}

func TestBroadcastDropsDeadPeerWithoutFailingOthers(t *testing.T) {
	h := testHub()
	dead, alive := &fakeConn{failing: true}, &fakeConn{}
	h.Register("client-dead", "term-1", RolePOS, dead)
	h.Register("client-alive", "term-2", RolePOS, alive)

	h.Broadcast("drawer:opened", nil, nil)

	if alive.writeCount() != 1 {
		t.Fatalf("surviving peer got %d writes, want 1", alive.writeCount())
	}
	if !dead.closed {
		t.Fatalf("dead peer connection was not closed")
	}
	if h.PeerCount() != 1 {
		t.Fatalf("PeerCount() = %d, want 1 (dead peer should be unregistered)", h.PeerCount())
	}
}

func TestSendToTerminalTargetsOnlyThatTerminal(t *testing.T) {
	h := testHub()
	a, b := &fakeConn{}, &fakeConn{}
	h.Register("client-a", "term-1", RolePOS, a)
	h.Register("client-b", "term-2", RolePOS, b)

	h.SendToTerminal("term-1", "call:incoming", nil)

	if a.writeCount() != 1 {
		t.Fatalf("targeted terminal got %d writes, want 1", a.writeCount())
	}
	if b.writeCount() != 0 {
		t.Fatalf("other terminal got %d writes, want 0", b.writeCount())
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := testHub()
	conn := &fakeConn{}
	h.Register("client-a", "term-1", RolePOS, conn)

	h.Unregister("client-a")
	h.Unregister("client-a")

	if h.PeerCount() != 0 {
		t.Fatalf("PeerCount() = %d, want 0", h.PeerCount())
	}
}

func TestMarshalFrameShape(t *testing.T) {
	raw, err := MarshalFrame("order:status", map[string]string{"id": "o1"})
	if err != nil {
		t.Fatalf("MarshalFrame() error = %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("MarshalFrame() returned empty bytes")
	}
}
