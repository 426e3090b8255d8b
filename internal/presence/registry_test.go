package presence

import (
	"testing"

	"github.com/google/uuid"
)

type stubConn struct{ got [][]byte }

func (c *stubConn) SendMessage(payload []byte) {
	c.got = append(c.got, payload)
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	userID := uuid.New()

	if _, ok := r.Lookup(userID); ok {
		t.Fatalf("lookup on empty registry succeeded")
	}

	conn := &stubConn{}
	r.Register(userID, conn)

	got, ok := r.Lookup(userID)
	if !ok || got != Conn(conn) {
		t.Errorf("lookup returned %v, %v", got, ok)
	}
	if r.Online() != 1 {
		t.Errorf("got %d online, want 1", r.Online())
	}
}

func TestReconnectSupersedes(t *testing.T) {
	r := NewRegistry()
	userID := uuid.New()

	old := &stubConn{}
	fresh := &stubConn{}
	r.Register(userID, old)
	r.Register(userID, fresh)

	got, ok := r.Lookup(userID)
	if !ok || got != Conn(fresh) {
		t.Fatalf("lookup did not return the newer connection")
	}

	// The superseded handle disconnecting must not evict the newer one.
	r.Unregister(old)
	if got, ok := r.Lookup(userID); !ok || got != Conn(fresh) {
		t.Errorf("stale unregister evicted the live connection")
	}

	r.Unregister(fresh)
	if _, ok := r.Lookup(userID); ok {
		t.Errorf("user still registered after unregister")
	}
	if r.Online() != 0 {
		t.Errorf("got %d online, want 0", r.Online())
	}
}
