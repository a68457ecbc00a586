package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mcourt/quizclash/go/internal/game"
	"github.com/mcourt/quizclash/go/internal/game/events"
)

func newTestGateway(t *testing.T) (*httptest.Server, *ConnectionManager) {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig())
	app := game.NewApp(game.DefaultConfig(), clockwork.NewRealClock(), cm, nil)
	router := NewRouter(app, cm)
	cm.SetRouter(router)

	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, cm
}

func dialGateway(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, err := json.Marshal(clientMessage{Type: msgType, Data: data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// readUntil reads frames until every wanted event type arrived or the
// deadline passes, and returns everything seen.
func readUntil(t *testing.T, conn *websocket.Conn, want ...events.Type) map[events.Type]bool {
	t.Helper()
	got := make(map[events.Type]bool)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return got
		}
		var e events.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			t.Fatalf("malformed frame %q: %v", raw, err)
		}
		got[e.Type] = true

		missing := false
		for _, w := range want {
			if !got[w] {
				missing = true
			}
		}
		if !missing {
			return got
		}
	}
}

func TestCreatorReceivesInitialBroadcasts(t *testing.T) {
	srv, _ := newTestGateway(t)
	conn := dialGateway(t, srv)

	sendFrame(t, conn, "create_session", createSessionRequest{
		Code: "ABC123", Name: "Alice", StableID: "alice",
	})

	want := []events.Type{events.TypeRoleAssigned, events.TypeSessionCreated, events.TypeSessionState}
	got := readUntil(t, conn, want...)
	for _, w := range want {
		if !got[w] {
			t.Fatalf("creator missed %s, received %v", w, got)
		}
	}
}

func TestJoinerReceivesInitialBroadcasts(t *testing.T) {
	srv, _ := newTestGateway(t)

	creator := dialGateway(t, srv)
	sendFrame(t, creator, "create_session", createSessionRequest{
		Code: "ABC123", Name: "Alice", StableID: "alice",
	})
	if got := readUntil(t, creator, events.TypeSessionCreated); !got[events.TypeSessionCreated] {
		t.Fatalf("session was not created, received %v", got)
	}

	joiner := dialGateway(t, srv)
	sendFrame(t, joiner, "join_session", joinSessionRequest{
		Code: "ABC123", Name: "Bob", StableID: "bob",
	})

	want := []events.Type{events.TypeRoleAssigned, events.TypeSessionState}
	got := readUntil(t, joiner, want...)
	for _, w := range want {
		if !got[w] {
			t.Fatalf("joiner missed %s, received %v", w, got)
		}
	}
}

func TestFailedCreateLeavesConnectionUnbound(t *testing.T) {
	srv, cm := newTestGateway(t)
	conn := dialGateway(t, srv)

	sendFrame(t, conn, "create_session", createSessionRequest{
		Code: "ABC123", Name: "", StableID: "alice",
	})

	if got := readUntil(t, conn, events.TypeError); !got[events.TypeError] {
		t.Fatalf("expected an error event, received %v", got)
	}
	if _, sessions := cm.GetConnectionStats(); sessions != 0 {
		t.Fatalf("rejected create must not leave a session binding, have %d", sessions)
	}
}
