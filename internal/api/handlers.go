package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codraw/internal/metrics"
	"codraw/internal/models"
	"codraw/internal/session"
)

const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handlers struct {
	log         *zap.Logger
	registry    *session.Registry
	maxMessage  int64
	connections atomic.Int64
}

func NewHandlers(log *zap.Logger, registry *session.Registry, maxMessage int64) *Handlers {
	return &Handlers{log: log, registry: registry, maxMessage: maxMessage}
}

// ConnectionCount reports live websocket connections.
func (h *Handlers) ConnectionCount() int {
	return int(h.connections.Load())
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// Status is the read-only operational report: process-wide room count and
// live connection count.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, models.StatusResponse{
		Status:      "ok",
		Rooms:       h.registry.RoomCount(),
		Connections: h.ConnectionCount(),
	})
}

// HubWS upgrades the connection and runs its event loop. One Session per
// connection; room binding happens inside via create-room/join-room.
func (h *Handlers) HubWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := session.NewClient(conn)
	go client.WritePump()

	h.connections.Add(1)
	h.log.Info("client connected", zap.String("id", client.ID))

	sess := session.NewSession(h.registry, client, h.log)
	defer func() {
		sess.Close()
		client.Close()
		h.connections.Add(-1)
		h.log.Info("client disconnected", zap.String("id", client.ID))
	}()

	conn.SetReadLimit(h.maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", zap.String("id", client.ID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		metrics.EventReceived(frame.Type)
		sess.HandleFrame(frame)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
