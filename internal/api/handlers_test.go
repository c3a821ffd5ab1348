package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codraw/internal/models"
	"codraw/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *Handlers) {
	t.Helper()
	registry := session.NewRegistry(time.Minute, zap.NewNop())
	h := NewHandlers(zap.NewNop(), registry, 50<<20)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HubWS)
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/api/v1/status", h.Status)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, h
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, want string, out any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f models.WSFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type != want {
			continue
		}
		b, err := json.Marshal(f.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, out))
		return
	}
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateRoomOverWebsocket(t *testing.T) {
	server, h := newTestServer(t)
	conn := dial(t, server)

	require.NoError(t, conn.WriteJSON(models.WSFrame{
		Type: models.TypeCreateRoom,
		Data: models.CreateRoomRequest{Username: "alice"},
	}))

	var ack models.RoomCreated
	readFrame(t, conn, models.TypeRoomCreated, &ack)
	assert.Len(t, ack.Code, 6)
	assert.Equal(t, "alice", ack.User.Username)

	// The ack guarantees the server reached its event loop, so the
	// connection is counted by now.
	assert.Equal(t, 1, h.ConnectionCount())

	resp, err := http.Get(server.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status models.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 1, status.Rooms)
	assert.Equal(t, 1, status.Connections)
}

func TestJoinAndBroadcastOverWebsocket(t *testing.T) {
	server, _ := newTestServer(t)

	alice := dial(t, server)
	require.NoError(t, alice.WriteJSON(models.WSFrame{
		Type: models.TypeCreateRoom,
		Data: models.CreateRoomRequest{Username: "alice"},
	}))
	var created models.RoomCreated
	readFrame(t, alice, models.TypeRoomCreated, &created)

	bob := dial(t, server)
	require.NoError(t, bob.WriteJSON(models.WSFrame{
		Type: models.TypeJoinRoom,
		Data: models.JoinRoomRequest{Code: strings.ToLower(created.Code), Username: "bob"},
	}))
	var joined models.RoomJoined
	readFrame(t, bob, models.TypeRoomJoined, &joined)
	assert.Equal(t, created.Code, joined.Code)

	var joinedUser models.User
	readFrame(t, alice, models.TypeUserJoined, &joinedUser)
	assert.Equal(t, "bob", joinedUser.Username)

	require.NoError(t, alice.WriteJSON(models.WSFrame{
		Type: models.TypeChatMessage,
		Data: models.ChatRequest{Text: "hi"},
	}))
	var msg models.ChatMessage
	readFrame(t, bob, models.TypeChatMessage, &msg)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "alice", msg.Username)
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	server, _ := newTestServer(t)

	alice := dial(t, server)
	require.NoError(t, alice.WriteJSON(models.WSFrame{
		Type: models.TypeCreateRoom,
		Data: models.CreateRoomRequest{Username: "alice"},
	}))
	var created models.RoomCreated
	readFrame(t, alice, models.TypeRoomCreated, &created)

	bob := dial(t, server)
	require.NoError(t, bob.WriteJSON(models.WSFrame{
		Type: models.TypeJoinRoom,
		Data: models.JoinRoomRequest{Code: created.Code, Username: "bob"},
	}))
	var joined models.RoomJoined
	readFrame(t, bob, models.TypeRoomJoined, &joined)

	bob.Close()

	var left models.UserLeft
	readFrame(t, alice, models.TypeUserLeft, &left)
	assert.Equal(t, "bob", left.Username)
}
