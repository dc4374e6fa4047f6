package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"promptday-backend/internal/models"
	"promptday-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes live contest events (score submissions, leaderboard
// changes) to connected clients. It implements services.Broadcaster.
type WebSocketHandler struct {
	redisService *services.RedisService
	hub          *WebSocketHub
}

type WebSocketHub struct {
	clients    map[*websocket.Conn]string
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

type Client struct {
	Address string
	Conn    *websocket.Conn
}

type Message struct {
	Type    string      `json:"type"`
	Address string      `json:"address,omitempty"`
	Data    interface{} `json:"data"`
}

func NewWebSocketHandler(redisService *services.RedisService) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[*websocket.Conn]string),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		redisService: redisService,
		hub:          hub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	address := c.GetString("address")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		Address: address,
		Conn:    conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendLeaderboard(c, client)

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(c, client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(c *gin.Context, client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.sendPong(client)
	case "SUBSCRIBE_LEADERBOARD":
		h.sendLeaderboard(c, client)
	}
}

func (h *WebSocketHandler) sendLeaderboard(c *gin.Context, client *Client) {
	dayKey := models.DayKey(time.Now())

	entries, err := h.redisService.GetLeaderboard(c.Request.Context(), dayKey, 50)
	if err != nil {
		log.Printf("Failed to get leaderboard for WS: %v", err)
		return
	}

	msg := Message{
		Type: "LEADERBOARD_UPDATE",
		Data: gin.H{
			"day":         dayKey,
			"leaderboard": entries,
		},
	}

	client.Conn.WriteJSON(msg)
}

func (h *WebSocketHandler) sendPong(client *Client) {
	msg := Message{
		Type: "PONG",
		Data: gin.H{
			"timestamp": time.Now().Unix(),
		},
	}

	client.Conn.WriteJSON(msg)
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.Conn] = client.Address
			log.Printf("Client registered: %s", client.Address)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.Conn]; ok {
				delete(hub.clients, client.Conn)
				log.Printf("Client unregistered: %s", client.Address)
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	for conn := range hub.clients {
		conn.WriteJSON(message)
	}
}

// BroadcastScoreSubmitted implements services.Broadcaster; every connected
// client sees new finalized scores as they land.
func (h *WebSocketHandler) BroadcastScoreSubmitted(address, dayKey string, score int) {
	msg := &Message{
		Type:    "SCORE_SUBMITTED",
		Address: address,
		Data: gin.H{
			"address":   address,
			"day":       dayKey,
			"score":     score,
			"timestamp": time.Now().Unix(),
		},
	}

	h.hub.broadcast <- msg
}
