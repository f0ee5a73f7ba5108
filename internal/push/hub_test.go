package push

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws/wsutil"
)

type fakeBroker struct {
	subscribed   map[string]string // listenerID -> userID
	unsubscribed map[string]int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subscribed: make(map[string]string), unsubscribed: make(map[string]int)}
}

func (f *fakeBroker) SubscribeInvalidate(userID, listenerID string, _ func(data []byte)) error {
	f.subscribed[listenerID] = userID
	return nil
}

func (f *fakeBroker) UnsubscribeInvalidate(listenerID string) error {
	f.unsubscribed[listenerID]++
	return nil
}

func (f *fakeBroker) SubscribeMatchCreated(userID, listenerID string, _ func(data []byte)) error {
	return nil
}

func (f *fakeBroker) UnsubscribeMatchCreated(listenerID string) error {
	return nil
}

// pipeConn registers a hub connection backed by one end of a net.Pipe and
// returns the client end for reading frames.
func pipeConn(t *testing.T, h *Hub, id, userID string) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	c := &Conn{ID: id, UserID: userID, CreatedAt: time.Now(), conn: server}
	h.add(c)
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return client
}

func TestHub_RegistryBookkeeping(t *testing.T) {
	h := NewHub(DefaultConfig(), nil)

	pipeConn(t, h, "c1", "alice")
	pipeConn(t, h, "c2", "alice")
	pipeConn(t, h, "c3", "bob")

	if h.Count() != 3 {
		t.Errorf("expected 3 connections, got %d", h.Count())
	}
	if h.UserCount("alice") != 2 {
		t.Errorf("expected 2 connections for alice, got %d", h.UserCount("alice"))
	}

	h.mu.RLock()
	c1 := h.byID["c1"]
	h.mu.RUnlock()
	h.remove(c1)

	if h.Count() != 2 || h.UserCount("alice") != 1 {
		t.Errorf("after remove: total=%d alice=%d", h.Count(), h.UserCount("alice"))
	}
}

func TestHub_RemoveIsIdempotent(t *testing.T) {
	broker := newFakeBroker()
	h := NewHub(DefaultConfig(), broker)
	pipeConn(t, h, "c1", "alice")

	h.mu.RLock()
	c := h.byID["c1"]
	h.mu.RUnlock()

	h.remove(c)
	h.remove(c)

	if h.Count() != 0 {
		t.Errorf("expected empty registry, got %d", h.Count())
	}
	if broker.unsubscribed["c1"] != 1 {
		t.Errorf("expected exactly one unsubscribe, got %d", broker.unsubscribed["c1"])
	}
}

func TestHub_SendReachesAllUserConnections(t *testing.T) {
	h := NewHub(DefaultConfig(), nil)
	aliceA := pipeConn(t, h, "c1", "alice")
	aliceB := pipeConn(t, h, "c2", "alice")
	bob := pipeConn(t, h, "c3", "bob")

	// Pipe writes block until the peer reads, so collect frames concurrently.
	type result struct {
		frame []byte
		err   error
	}
	results := make(chan result, 2)
	for _, client := range []net.Conn{aliceA, aliceB} {
		go func(client net.Conn) {
			client.SetReadDeadline(time.Now().Add(2 * time.Second))
			frame, err := wsutil.ReadServerText(client)
			results <- result{frame, err}
		}(client)
	}

	h.Send("alice", EventMatch, []byte(`{"other_id":"owner02"}`))

	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("read frame: %v", res.err)
		}

		var ev Event
		if err := json.Unmarshal(res.frame, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Type != EventMatch {
			t.Errorf("expected %q event, got %q", EventMatch, ev.Type)
		}
		if string(ev.Data) != `{"other_id":"owner02"}` {
			t.Errorf("unexpected payload %s", ev.Data)
		}
	}

	// Bob's connection must stay silent.
	bob.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, err := wsutil.ReadServerText(bob); err == nil {
		t.Error("bob received an event addressed to alice")
	}
}

func TestHub_ShutdownClosesEverything(t *testing.T) {
	broker := newFakeBroker()
	h := NewHub(DefaultConfig(), broker)
	pipeConn(t, h, "c1", "alice")
	pipeConn(t, h, "c2", "bob")

	h.Shutdown()

	if h.Count() != 0 {
		t.Errorf("expected empty registry after shutdown, got %d", h.Count())
	}
	if len(broker.unsubscribed) != 2 {
		t.Errorf("expected both listeners unsubscribed, got %v", broker.unsubscribed)
	}
}
