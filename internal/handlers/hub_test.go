package handlers

import (
	"sync"
	"testing"
	"time"

	"locshare-backend/internal/models"
)

// fakeConn records everything written to it
type fakeConn struct {
	mu     sync.Mutex
	writes []interface{}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, w := range f.writes {
		switch m := w.(type) {
		case map[string]interface{}:
			if e, ok := m["event"].(string); ok {
				names = append(names, e)
			}
		default:
			names = append(names, "")
		}
	}
	return names
}

func newTestClient(id string, userID int, username string) (*Client, *fakeConn) {
	conn := &fakeConn{}
	return NewClient(id, userID, username, conn), conn
}

func TestCountMatchesDistinctUsers(t *testing.T) {
	hub := NewHub(time.Second)

	a, _ := newTestClient("conn-a", 1, "alice")
	b, _ := newTestClient("conn-b", 2, "bob")
	hub.Register(a)
	hub.Register(b)

	if got := hub.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}

	hub.Unregister("conn-a")
	if got := hub.Count(); got != 1 {
		t.Fatalf("Count() after unregister = %d, want 1", got)
	}

	// Unregistering an unknown connection changes nothing.
	if _, _, ok := hub.Unregister("conn-a"); ok {
		t.Fatal("Unregister of stale connection reported ok")
	}
	if got := hub.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestRegisterLastWriterWins(t *testing.T) {
	hub := NewHub(time.Second)

	first, firstConn := newTestClient("conn-1", 7, "user7")
	second, secondConn := newTestClient("conn-2", 7, "user7")
	hub.Register(first)
	hub.Register(second)

	if got := hub.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1: a user never holds two entries", got)
	}

	current, ok := hub.Lookup(7)
	if !ok || current.ID != "conn-2" {
		t.Fatalf("Lookup(7) = %v, want the newer connection", current)
	}

	firstWrites := firstConn.count()
	hub.SendToUser(7, map[string]interface{}{"event": "ping"})
	if firstConn.count() != firstWrites {
		t.Fatal("evicted connection still receives pushes")
	}
	if secondConn.count() == 0 {
		t.Fatal("current connection received nothing")
	}
}

func TestUnregisterStaleConnectionKeepsNewerRegistration(t *testing.T) {
	hub := NewHub(time.Second)

	first, _ := newTestClient("conn-1", 7, "user7")
	second, _ := newTestClient("conn-2", 7, "user7")
	hub.Register(first)
	hub.Register(second)

	// The old connection's read loop exits after the takeover.
	hub.Unregister("conn-1")

	if current, ok := hub.Lookup(7); !ok || current.ID != "conn-2" {
		t.Fatalf("stale unregister removed the live registration, got %v ok=%v", current, ok)
	}
}

func TestSendToUserOnlyReachesRegistered(t *testing.T) {
	hub := NewHub(time.Second)

	friend, friendConn := newTestClient("conn-f", 2, "friend")
	stranger, strangerConn := newTestClient("conn-s", 3, "stranger")
	hub.Register(friend)
	hub.Register(stranger)

	// Fan-out targets only the friend set; user 4 is offline.
	payload := map[string]interface{}{"event": "location:receive"}
	if !hub.SendToUser(2, payload) {
		t.Fatal("SendToUser(2) = false, want delivery")
	}
	if hub.SendToUser(4, payload) {
		t.Fatal("SendToUser(4) = true for an absent user")
	}

	if got := friendConn.count(); got == 0 {
		t.Fatal("friend received nothing")
	}
	for _, e := range strangerConn.events() {
		if e == "location:receive" {
			t.Fatal("non-target received a location push")
		}
	}
}

func TestBroadcastRoomExcludesConnection(t *testing.T) {
	hub := NewHub(time.Second)

	a, aConn := newTestClient("conn-a", 1, "alice")
	b, bConn := newTestClient("conn-b", 2, "bob")
	hub.Register(a)
	hub.Register(b)
	hub.JoinRoom("conv-1", a)
	hub.JoinRoom("conv-1", b)

	aBefore, bBefore := aConn.count(), bConn.count()
	hub.BroadcastRoom("conv-1", map[string]interface{}{"event": "chat:typing"}, "conn-a")

	if aConn.count() != aBefore {
		t.Fatal("excluded connection received the broadcast")
	}
	if bConn.count() != bBefore+1 {
		t.Fatalf("other subscriber writes = %d, want %d", bConn.count(), bBefore+1)
	}
}

func TestBroadcastRoomSkipsNonSubscribers(t *testing.T) {
	hub := NewHub(time.Second)

	a, _ := newTestClient("conn-a", 1, "alice")
	c, cConn := newTestClient("conn-c", 3, "carol")
	hub.Register(a)
	hub.Register(c) // registered but never joined the room
	hub.JoinRoom("conv-1", a)

	before := cConn.count()
	hub.BroadcastRoom("conv-1", map[string]interface{}{"event": "chat:message"}, "")
	if cConn.count() != before {
		t.Fatal("non-subscriber received a room broadcast")
	}
}

func TestUnregisterPurgesRoomsOfUnidentifiedConnection(t *testing.T) {
	hub := NewHub(time.Second)

	// Ghost joined a room but never registered its presence.
	ghost, ghostConn := newTestClient("conn-ghost", 9, "ghost")
	hub.JoinRoom("conv-1", ghost)

	if _, _, ok := hub.Unregister("conn-ghost"); ok {
		t.Fatal("Unregister reported ok for a connection that never registered")
	}

	before := ghostConn.count()
	hub.BroadcastRoom("conv-1", map[string]interface{}{"event": "chat:message"}, "")
	if ghostConn.count() != before {
		t.Fatal("disconnected connection still received a room broadcast; membership leaked")
	}
}

func TestPresenceCountBroadcast(t *testing.T) {
	hub := NewHub(time.Second)

	a, aConn := newTestClient("conn-a", 1, "alice")
	hub.Register(a)
	b, _ := newTestClient("conn-b", 2, "bob")
	hub.Register(b)

	var sawCount bool
	for _, e := range aConn.events() {
		if e == "users:count" {
			sawCount = true
		}
	}
	if !sawCount {
		t.Fatal("no users:count broadcast after a registration")
	}
}

func TestUnregisterReportsTypingConversations(t *testing.T) {
	hub := NewHub(time.Second)

	a, _ := newTestClient("conn-a", 1, "alice")
	hub.Register(a)
	hub.JoinRoom("conv-1", a)
	hub.SetTyping("conv-1", 1, true)

	_, typingIn, ok := hub.Unregister("conn-a")
	if !ok {
		t.Fatal("Unregister = !ok for a registered connection")
	}
	if len(typingIn) != 1 || typingIn[0] != "conv-1" {
		t.Fatalf("typingIn = %v, want [conv-1]", typingIn)
	}
	if users := hub.TypingUsers("conv-1"); len(users) != 0 {
		t.Fatalf("typing state survived disconnect: %v", users)
	}
}

func TestTypingExpires(t *testing.T) {
	hub := NewHub(30 * time.Millisecond)

	hub.SetTyping("conv-1", 1, true)
	if users := hub.TypingUsers("conv-1"); len(users) != 1 {
		t.Fatalf("TypingUsers = %v, want [1]", users)
	}

	time.Sleep(50 * time.Millisecond)
	if users := hub.TypingUsers("conv-1"); len(users) != 0 {
		t.Fatalf("typing entry did not expire: %v", users)
	}
}

func TestTypingStopClears(t *testing.T) {
	hub := NewHub(time.Second)

	hub.SetTyping("conv-1", 1, true)
	hub.SetTyping("conv-1", 1, false)
	if users := hub.TypingUsers("conv-1"); len(users) != 0 {
		t.Fatalf("TypingUsers = %v, want empty after stop", users)
	}
}

func TestExpireTypingNotifiesRoom(t *testing.T) {
	hub := NewHub(30 * time.Millisecond)

	a, _ := newTestClient("conn-a", 1, "alice")
	b, bConn := newTestClient("conn-b", 2, "bob")
	hub.Register(a)
	hub.Register(b)
	hub.JoinRoom("conv-1", a)
	hub.JoinRoom("conv-1", b)

	hub.SetTyping("conv-1", 1, true)
	time.Sleep(50 * time.Millisecond)
	hub.expireTyping()

	var notified bool
	bConn.mu.Lock()
	for _, w := range bConn.writes {
		if m, ok := w.(models.WSMessage); ok && m.Event == "chat:typing" && m.IsTyping != nil && !*m.IsTyping {
			notified = true
		}
	}
	bConn.mu.Unlock()
	if !notified {
		t.Fatal("room got no stop-typing notification on expiry")
	}
}
