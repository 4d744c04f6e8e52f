package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trdelnik-backend/internal/ledger"
	"trdelnik-backend/internal/ledger/ledgertest"
	"trdelnik-backend/internal/models"
	"trdelnik-backend/internal/services"
)

const wsTestPlayer = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

func dialTestSocket(t *testing.T) (*WebSocketHandler, *websocket.Conn) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	adapter := ledger.NewAdapter(ledgertest.New(), ledger.VariantStandard)
	gameService := services.NewGameService(adapter, nil, nil, nil)
	handler := NewWebSocketHandler(gameService)

	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set("player", wsTestPlayer)
		handler.HandleWebSocket(c)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return handler, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	return msg
}

func TestWebSocketSessionStream(t *testing.T) {
	handler, conn := dialTestSocket(t)

	// No live session: the greeting says so.
	if msg := readMessage(t, conn); msg.Type != "NO_GAME" {
		t.Fatalf("expected NO_GAME greeting, got %s", msg.Type)
	}

	if err := conn.WriteJSON(Message{Type: "PING"}); err != nil {
		t.Fatalf("failed to send ping: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != "PONG" {
		t.Fatalf("expected PONG, got %s", msg.Type)
	}

	handler.NotifySession(wsTestPlayer, &models.GameSession{
		SessionID:   7,
		Player:      wsTestPlayer,
		Difficulty:  models.DifficultyEasy,
		Stake:       "0.05",
		CurrentStep: 3,
		Status:      models.GameStatusActive,
	})
	msg := readMessage(t, conn)
	if msg.Type != "GAME_UPDATE" {
		t.Fatalf("expected GAME_UPDATE, got %s", msg.Type)
	}

	handler.NotifySession(wsTestPlayer, &models.GameSession{
		SessionID: 7,
		Player:    wsTestPlayer,
		Status:    models.GameStatusLost,
	})
	if msg := readMessage(t, conn); msg.Type != "GAME_LOST" {
		t.Fatalf("expected GAME_LOST, got %s", msg.Type)
	}

	// Other players' sessions never reach this connection.
	handler.NotifySession("0x0000000000000000000000000000000000000001", &models.GameSession{
		SessionID: 9,
		Status:    models.GameStatusCashedOut,
	})
	if err := conn.WriteJSON(Message{Type: "PING"}); err != nil {
		t.Fatalf("failed to send ping: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != "PONG" {
		t.Fatalf("expected PONG, got %s (leaked another player's update?)", msg.Type)
	}
}
