package gateway

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mcourt/quizclash/go/internal/game/events"
)

// registerFakeConns puts connections into the manager's maps directly, the
// state UpgradeConnection+Bind would leave behind, without real sockets.
func registerFakeConns(cm *ConnectionManager, sessionCode string, n int) []*Connection {
	conns := make([]*Connection, 0, n)
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.sessionConns[sessionCode] = make(map[*Connection]bool)
	for i := 0; i < n; i++ {
		conn := &Connection{
			ID:          fmt.Sprintf("conn-%d", i),
			SessionCode: sessionCode,
			Send:        make(chan []byte, 16),
			Manager:     cm,
		}
		cm.byConnID[conn.ID] = conn
		cm.sessionConns[sessionCode][conn] = true
		conns = append(conns, conn)
	}
	return conns
}

func TestBroadcastRacingDisconnectDoesNotPanic(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conns := registerFakeConns(cm, "ABC123", 64)

	event := events.New("ABC123", events.TypeSessionState, nil, time.Now())

	// A fan-out running concurrently with disconnect cleanup must never
	// send on a Send channel that unregisterConnection already closed.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 8; i++ {
			cm.handleBroadcast(BroadcastMessage{SessionCode: "ABC123", Event: event})
		}
	}()
	go func() {
		defer wg.Done()
		for _, conn := range conns {
			cm.unregisterConnection(conn)
		}
	}()
	wg.Wait()

	total, sessions := cm.GetConnectionStats()
	if total != 0 || sessions != 0 {
		t.Fatalf("expected empty manager after cleanup, have %d conns in %d sessions", total, sessions)
	}
}

func TestUnbindRemovesSessionPoolEntry(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conn := &Connection{ID: "conn-1", Send: make(chan []byte, 1), Manager: cm}
	cm.mu.Lock()
	cm.byConnID[conn.ID] = conn
	cm.mu.Unlock()

	cm.Bind(conn, "ABC123", "alice")
	if _, sessions := cm.GetConnectionStats(); sessions != 1 {
		t.Fatal("bind did not create the session pool")
	}

	cm.Unbind(conn)
	if _, sessions := cm.GetConnectionStats(); sessions != 0 {
		t.Fatal("unbind did not remove the session pool")
	}
	if conn.SessionCode != "" || conn.StableID != "" {
		t.Fatalf("unbind must clear the binding, got %q/%q", conn.SessionCode, conn.StableID)
	}
}

func TestUnregisteredConnectionSkippedByBroadcast(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conns := registerFakeConns(cm, "ABC123", 2)

	cm.unregisterConnection(conns[0])
	cm.handleBroadcast(BroadcastMessage{
		SessionCode: "ABC123",
		Event:       events.New("ABC123", events.TypeSessionState, nil, time.Now()),
	})

	select {
	case <-conns[1].Send:
	default:
		t.Fatal("registered connection did not receive the broadcast")
	}
	if len(conns[0].Send) != 0 {
		t.Fatal("unregistered connection must not receive broadcasts")
	}
}
