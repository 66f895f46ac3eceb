package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/subautotrans/subautotrans/internal/task"
	"github.com/subautotrans/subautotrans/pkg/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is same-host or reverse-proxied; origin enforcement
	// belongs to the proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one progress or status update pushed to clients.
type Event struct {
	Type     string `json:"type"`
	TaskID   int64  `json:"task_id"`
	Progress int    `json:"progress,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Hub fans task events out to every connected websocket client. A
// client that cannot keep up is dropped rather than blocking the rest.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// BroadcastProgress pushes a progress update. Matches queue.ProgressFunc.
func (h *Hub) BroadcastProgress(taskID int64, progress int) {
	h.broadcast(Event{Type: "progress", TaskID: taskID, Progress: progress})
}

// BroadcastStatus pushes a status transition. Matches queue.StatusFunc.
func (h *Hub) BroadcastStatus(taskID int64, status task.Status) {
	h.broadcast(Event{Type: "status", TaskID: taskID, Status: string(status)})
}

// BroadcastNewTask announces a freshly queued task.
func (h *Hub) BroadcastNewTask(taskID int64) {
	h.broadcast(Event{Type: "new_task", TaskID: taskID})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the connection and attaches it to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan Event, sendBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; its job is detecting disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
