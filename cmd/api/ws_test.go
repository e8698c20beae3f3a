package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// dialWS connects a test client, optionally carrying a token cookie.
func dialWS(t *testing.T, baseURL, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	header := http.Header{}
	if token != "" {
		header.Set("Cookie", tokenCookie+"="+token)
	}
	c, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// readUntil reads frames until pred matches one, or the deadline passes.
func readUntil(t *testing.T, c *websocket.Conn, what string, pred func(map[string]any) bool) map[string]any {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var frame map[string]any
		if err := c.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if pred(frame) {
			return frame
		}
	}
}

// onlineSet extracts the user ids of a presence frame, or nil if the frame
// is not a presence push.
func onlineSet(frame map[string]any) map[string]bool {
	raw, ok := frame["online"].([]any)
	if !ok {
		return nil
	}
	ids := map[string]bool{}
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			if id, ok := m["userId"].(string); ok {
				ids[id] = true
			}
		}
	}
	return ids
}

func TestRelayEndToEnd(t *testing.T) {
	s, users, msgs, r := newTestServer(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := users.add("alice", "pw")
	bob := users.add("bob", "pw")
	tokenA, _, _ := s.auth.GenerateToken(alice.ID, alice.Username)
	tokenB, _, _ := s.auth.GenerateToken(bob.ID, bob.Username)
	u1, u2 := alice.ID.Hex(), bob.ID.Hex()

	connA := dialWS(t, srv.URL, tokenA)
	connB := dialWS(t, srv.URL, tokenB)

	// both clients see a presence snapshot containing both identities
	readUntil(t, connA, "presence with both users", func(f map[string]any) bool {
		on := onlineSet(f)
		return on[u1] && on[u2]
	})
	readUntil(t, connB, "presence with both users", func(f map[string]any) bool {
		on := onlineSet(f)
		return on[u1] && on[u2]
	})

	// alice sends a direct message to bob
	if err := connA.WriteJSON(map[string]any{"recipient": u2, "text": "hi"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// bob receives the delivery payload
	delivery := readUntil(t, connB, "delivery", func(f map[string]any) bool {
		_, ok := f["sender"]
		return ok
	})
	if delivery["text"] != "hi" || delivery["sender"] != u1 || delivery["recipient"] != u2 {
		t.Fatalf("delivery payload wrong: %+v", delivery)
	}
	if delivery["file"] != nil {
		t.Fatalf("expected null file, got %v", delivery["file"])
	}

	// the persisted record matches the delivery, id included
	rec := msgs.last()
	if rec == nil || rec.Sender != u1 || rec.Recipient != u2 || rec.Text != "hi" {
		t.Fatalf("persisted record wrong: %+v", rec)
	}
	if delivery["id"] != rec.ID.Hex() {
		t.Fatalf("delivery id %v does not match persisted id %q", delivery["id"], rec.ID.Hex())
	}

	// bob disconnects; alice's next snapshot contains only herself
	_ = connB.Close()
	readUntil(t, connA, "presence without bob", func(f map[string]any) bool {
		on := onlineSet(f)
		return on != nil && on[u1] && !on[u2]
	})
}

func TestRelayPersistsForOfflineRecipient(t *testing.T) {
	s, users, msgs, r := newTestServer(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := users.add("alice", "pw")
	tokenA, _, _ := s.auth.GenerateToken(alice.ID, alice.Username)
	offline := bson.NewObjectID().Hex()

	connA := dialWS(t, srv.URL, tokenA)
	readUntil(t, connA, "own presence", func(f map[string]any) bool {
		return onlineSet(f)[alice.ID.Hex()]
	})

	if err := connA.WriteJSON(map[string]any{"recipient": offline, "text": "see you"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for msgs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	rec := msgs.last()
	if rec == nil || rec.Recipient != offline {
		t.Fatalf("message to offline recipient was not persisted: %+v", rec)
	}
}

func TestRelayIgnoresUnauthenticatedConnection(t *testing.T) {
	_, _, msgs, r := newTestServer(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	// no cookie: admitted but untagged
	conn := dialWS(t, srv.URL, "")

	// it still receives presence pushes
	readUntil(t, conn, "presence push", func(f map[string]any) bool {
		return onlineSet(f) != nil
	})

	// but its sends are dropped
	if err := conn.WriteJSON(map[string]any{"recipient": "u2", "text": "hi"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if msgs.count() != 0 {
		t.Fatalf("message from untagged connection was persisted")
	}
}

func TestRelayEvictsSilentPeer(t *testing.T) {
	s, users, _, r := newTestServer(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := users.add("alice", "pw")
	bob := users.add("bob", "pw")
	tokenA, _, _ := s.auth.GenerateToken(alice.ID, alice.Username)
	tokenB, _, _ := s.auth.GenerateToken(bob.ID, bob.Username)
	u1, u2 := alice.ID.Hex(), bob.ID.Hex()

	connA := dialWS(t, srv.URL, tokenA)
	// bob connects but never reads, so his client never answers probes
	_ = dialWS(t, srv.URL, tokenB)

	readUntil(t, connA, "presence with both users", func(f map[string]any) bool {
		on := onlineSet(f)
		return on[u1] && on[u2]
	})

	// the liveness monitor must evict bob within interval+timeout
	readUntil(t, connA, "presence after eviction", func(f map[string]any) bool {
		on := onlineSet(f)
		return on != nil && on[u1] && !on[u2]
	})

	if _, ok := s.registry.FindByUserID(u2); ok {
		t.Fatal("silent peer still registered after eviction broadcast")
	}
}
