// synergy-platform/internal/handlers/dashboard_hub.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Типы событий живого дашборда.
const (
	EventPaymentAccepted = "payment_accepted"
	EventOverrideApplied = "override_applied"
	EventBatchReplaced   = "batch_replaced"
)

// Event — событие сверки, уходящее подписанным админским дашбордам.
type Event struct {
	Type    string    `json:"type"`
	Company string    `json:"company"`
	Month   int       `json:"month"`
	PlanID  uint      `json:"plan_id,omitempty"`
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Для разработки разрешаем все источники
	},
}

type dashboardClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

// Hub раздает события сверки всем подключенным дашбордам. Один экземпляр
// на приложение, запускается горутиной из main.
type Hub struct {
	clients    map[*dashboardClient]struct{}
	broadcast  chan []byte
	register   chan *dashboardClient
	unregister chan *dashboardClient
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *dashboardClient),
		unregister: make(chan *dashboardClient),
		clients:    make(map[*dashboardClient]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			slog.Info("Dashboard client registered", "userID", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Info("Dashboard client unregistered", "userID", client.userID)

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Отстающий клиент отключается, остальных не тормозим.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast публикует событие всем подписчикам. Безопасен для nil-хаба,
// чтобы обработчики не зависели от того, поднят ли websocket в этом запуске.
func (h *Hub) Broadcast(ev Event) {
	if h == nil {
		return
	}
	ev.At = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal dashboard event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Warn("Dashboard broadcast channel is full, event dropped", "type", ev.Type)
	}
}

// DashboardWSHandler — GET /api/admin/ws: подписка дашборда на события.
func DashboardWSHandler(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}

	client := &dashboardClient{
		hub:    Dashboard,
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: actor.UserID,
	}
	Dashboard.register <- client

	go client.writePump()
	go client.readPump()
}

func (cl *dashboardClient) writePump() {
	defer cl.conn.Close()
	for data := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump только следит за закрытием соединения: дашборд ничего не шлет.
func (cl *dashboardClient) readPump() {
	defer func() {
		cl.hub.unregister <- cl
		cl.conn.Close()
	}()
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
