package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hydraresolve/hydraresolve/internal/adminapi/models"
)

// Healthz godoc
// @Summary Health check
// @Description Returns server health status
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}
