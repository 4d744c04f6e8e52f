package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"trdelnik-backend/internal/services"
)

type MeritsHandler struct {
	meritsService *services.MeritsService
}

func NewMeritsHandler(meritsService *services.MeritsService) *MeritsHandler {
	return &MeritsHandler{
		meritsService: meritsService,
	}
}

func (h *MeritsHandler) GetUserRanking(c *gin.Context) {
	address := strings.ToLower(c.Param("address"))
	if !addressPattern.MatchString(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
		return
	}

	ranking, err := h.meritsService.GetUserRanking(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to fetch merits ranking",
			"details": err.Error(),
		})
		return
	}

	response := gin.H{
		"success": true,
		"ranking": ranking,
	}

	if user, err := h.meritsService.GetUserInfo(c.Request.Context(), address); err != nil {
		logrus.Warnf("merits user info for %s failed: %v", address, err)
	} else {
		response["user"] = user
	}

	c.JSON(http.StatusOK, response)
}
