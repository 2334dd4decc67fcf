package pipeline

import (
	"encoding/json"
	"sync"
	"time"

	"intellilot/internal/entity"
	"intellilot/pkg/log"

	"github.com/gofiber/websocket/v2"
)

const writeWait = 5 * time.Second

// Hub fans processing results out to connected websocket clients. Dead
// connections are dropped on write failure, a slow client never blocks the
// worker that called Broadcast for longer than the write deadline.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	count := len(h.conns)
	h.mu.Unlock()

	log.Info(log.Fields{"clients": count}, "Websocket client connected")
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	count := len(h.conns)
	h.mu.Unlock()

	log.Info(log.Fields{"clients": count}, "Websocket client disconnected")
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) Broadcast(record entity.ResultRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		log.Error(log.Fields{
			"error":   err.Error(),
			"task_id": record.TaskID,
		}, "Failed to marshal result for broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}
