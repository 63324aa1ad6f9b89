package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mines-backend/internal/models"
	"mines-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FeedHandler fans resolution events out to spectator websocket clients.
// New clients get the rolling last-10 list first, then live events as the
// engine publishes them.
type FeedHandler struct {
	redisService *services.RedisService
	hub          *feedHub
}

type feedHub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan *models.FeedEvent
}

func NewFeedHandler(redisService *services.RedisService) *FeedHandler {
	hub := &feedHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan *models.FeedEvent, 100),
	}

	go hub.run()

	return &FeedHandler{
		redisService: redisService,
		hub:          hub,
	}
}

// Run pumps the history channel into the hub until ctx is done.
func (h *FeedHandler) Run(ctx context.Context) {
	events, closeSub := h.redisService.SubscribeHistory(ctx)
	defer closeSub()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			h.hub.broadcast <- event
		case <-ctx.Done():
			return
		}
	}
}

func (h *FeedHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	h.hub.register <- conn

	defer func() {
		h.hub.unregister <- conn
		conn.Close()
	}()

	h.sendRecent(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (h *FeedHandler) sendRecent(conn *websocket.Conn) {
	events, err := h.redisService.RecentGames()
	if err != nil {
		log.Printf("Failed to load recent games for WS: %v", err)
		return
	}

	conn.WriteJSON(Message{
		Type: "RECENT_GAMES",
		Data: events,
	})
}

func (hub *feedHub) run() {
	for {
		select {
		case conn := <-hub.register:
			hub.clients[conn] = true

		case conn := <-hub.unregister:
			delete(hub.clients, conn)

		case event := <-hub.broadcast:
			msg := Message{Type: "GAME_RESULT", Data: event}
			for conn := range hub.clients {
				if err := conn.WriteJSON(msg); err != nil {
					delete(hub.clients, conn)
					conn.Close()
				}
			}
		}
	}
}
