package presencehandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/relay"
)

type Handler struct {
	relay *relay.Relay
}

func New(r *relay.Relay) *Handler { return &Handler{relay: r} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/presence", h.presence)
	r.GET("/healthz", h.health)
}

// @Summary		Online identities
// @Description	Returns the identities currently online on this instance.
// @Tags			Presence
// @Success		200	{object}	PresenceResponse
// @Router			/presence [get]
func (h *Handler) presence(c *gin.Context) {
	c.JSON(http.StatusOK, PresenceResponse{Users: h.relay.Snapshot()})
}

// @Summary		Liveness probe
// @Success		200	{object}	HealthResponse
// @Router			/healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
