package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trdelnik-backend/internal/models"
	"trdelnik-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	gameService *services.GameService
	hub         *WebSocketHub
}

type WebSocketHub struct {
	clients    map[string]*websocket.Conn
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

type Client struct {
	Player string
	Conn   *websocket.Conn
}

type Message struct {
	Type   string      `json:"type"`
	Player string      `json:"player,omitempty"`
	Data   interface{} `json:"data"`
}

func NewWebSocketHandler(gameService *services.GameService) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[string]*websocket.Conn),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		gameService: gameService,
		hub:         hub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	player := c.GetString("player")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		Player: player,
		Conn:   conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendCurrentGame(client)

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Warnf("WebSocket error for %s: %v", player, err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.sendPong(client)
	case "GET_GAME":
		h.sendCurrentGame(client)
	}
}

// All writes go through the hub: gorilla connections allow only one
// concurrent writer, and the hub's run loop is it.
func (h *WebSocketHandler) sendCurrentGame(client *Client) {
	session, ok := h.gameService.CurrentSession(client.Player)
	if !ok {
		h.hub.broadcast <- &Message{
			Type:   "NO_GAME",
			Player: client.Player,
			Data:   gin.H{"timestamp": time.Now().Unix()},
		}
		return
	}

	h.hub.broadcast <- &Message{
		Type:   "GAME_STATE",
		Player: client.Player,
		Data:   sessionView(session),
	}
}

func (h *WebSocketHandler) sendPong(client *Client) {
	h.hub.broadcast <- &Message{
		Type:   "PONG",
		Player: client.Player,
		Data:   gin.H{"timestamp": time.Now().Unix()},
	}
}

// NotifySession pushes a confirmed session transition to the owning player.
// Installed as the game service notify callback.
func (h *WebSocketHandler) NotifySession(player string, session *models.GameSession) {
	msgType := "GAME_UPDATE"
	switch session.Status {
	case models.GameStatusLost:
		msgType = "GAME_LOST"
	case models.GameStatusCashedOut:
		msgType = "GAME_CASHED_OUT"
	}

	h.hub.broadcast <- &Message{
		Type:   msgType,
		Player: player,
		Data:   sessionView(session),
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.Player] = client.Conn
			logrus.Debugf("client registered: %s", client.Player)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.Player]; ok {
				delete(hub.clients, client.Player)
				logrus.Debugf("client unregistered: %s", client.Player)
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	if message.Player != "" {
		if conn, ok := hub.clients[message.Player]; ok {
			conn.WriteJSON(message)
		}
	} else {
		for _, conn := range hub.clients {
			conn.WriteJSON(message)
		}
	}
}
