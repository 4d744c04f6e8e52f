package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"trdelnik-backend/internal/services"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type AuthHandler struct {
	jwtService  *services.JWTService
	gameService *services.GameService
}

func NewAuthHandler(jwtService *services.JWTService, gameService *services.GameService) *AuthHandler {
	return &AuthHandler{
		jwtService:  jwtService,
		gameService: gameService,
	}
}

// WalletAuth issues a session token for a wallet address. Signature
// verification happens at the ledger gateway, which refuses calls for
// players the caller does not control; the token only scopes API access.
func (h *AuthHandler) WalletAuth(c *gin.Context) {
	address := strings.ToLower(c.Query("address"))
	if !addressPattern.MatchString(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	token, err := h.jwtService.GenerateToken(address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"player":  address,
	})
}

func (h *AuthHandler) GetCurrentPlayer(c *gin.Context) {
	player := c.GetString("player")

	response := gin.H{
		"success": true,
		"player":  player,
	}

	if session, ok := h.gameService.CurrentSession(player); ok {
		response["active_game"] = session.SessionID
	}

	c.JSON(http.StatusOK, response)
}
